// Package auditinjection implements validator spot checks.
//
// Previously finalized submissions with a known verdict are re-presented
// to validators as ordinary review items. A wrong vote on such an item
// raises the validator's consecutive-failure tier and applies an
// escalating penalty through the rewards context.
package auditinjection
