// Package rate enforces fixed-window sign-in and refresh throttles using
// Redis counters. Keys expire after the cooldown window; a missing key
// means a clean budget. Never imports the root draftauth package.
package rate
