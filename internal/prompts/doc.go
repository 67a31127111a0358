// Package prompts holds the text the assistant sends to models and
// shows users: the system instruction, the conversation greeting, and
// the stand-in question used when a user sends only a photo.
//
// Prompt text is Go code rather than config because it is program
// logic that tests validate. Operators can still override the system
// instruction and greeting from config.yaml.
package prompts
