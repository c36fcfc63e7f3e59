// Package mfa implements second-factor flows: TOTP enrollment and
// verification, SMS and email challenge codes, and single-use backup
// codes.
//
// Challenge verification fails closed: an expired challenge or an
// exhausted attempt budget is an explicit error, and the attempt counter
// is incremented atomically before the supplied code is compared, even
// when the code turns out to be correct, so concurrent guesses cannot
// collectively exceed the budget. Error messages are deliberately generic
// and never reveal whether the code or the challenge was wrong.
//
// Delivery of SMS/email codes is delegated to caller-supplied senders and
// is fire-and-forget: a send failure never fails challenge creation.
package mfa
