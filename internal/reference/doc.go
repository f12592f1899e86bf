// Package reference turns "이전에 했던 얘기" into something actionable: it
// detects when a message points back at an earlier conversation and
// retrieves the most related turns from the user's other projects.
package reference
