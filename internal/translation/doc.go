// Package translation provides Bangla to English translation providers. The
// local provider runs the downloaded model through a session; the OpenAI and
// Gemini providers serve as fallbacks when the local engine fails. It also
// includes a translation cache for the interactive loop and file persistence
// for batch results.
package translation
