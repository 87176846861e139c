// Package credential issues and verifies the signed credential Draftboard
// clients hold between sign-ins. Claims are a fixed, explicitly typed
// structure validated at parse time; nothing downstream ever touches an
// untyped claim bag.
package credential
