// Package openai talks to OpenAI-compatible speech-to-text, chat completion,
// and text-to-speech endpoints.
//
// Every request shares one retry loop: rate limits, server errors, and
// timeouts back off exponentially (honouring Retry-After), while credential,
// size, and format rejections return immediately tagged with the matching
// services marker so callers can split, degrade, or abort.
package openai
