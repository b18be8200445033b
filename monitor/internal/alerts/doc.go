// Package alerts implements the debounced trigger that decides when the
// corrective effect is shown.
//
// States: normal (initial), pending (rate below target, waiting) and active
// (effect visible). Evaluate is called on the periodic check with the rate
// chosen by the session and the elapsed session time:
//
//   - before StartupGrace the trigger stays in, or returns to, normal;
//   - a low rate moves normal to pending and records pendingSince; a pending
//     trigger whose rate has stayed low for SustainedBelow becomes active and
//     returns the auto-revert deadline for its effect kind;
//   - a rate at or above target returns to normal from any state and hides
//     the effect immediately.
//
// Expire reverts active to pending with a fresh pendingSince, so a second
// activation needs another full SustainedBelow. Each activation is kept in a
// bounded log for the REST view.
//
// Trigger is safe for concurrent use. Time is always passed in explicitly.
package alerts
