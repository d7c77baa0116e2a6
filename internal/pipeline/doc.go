// Package pipeline runs one conversion end to end: transcription, sentence
// merging, translation, synthesis, and timeline assembly.
//
// A run owns a scratch directory under the configured scratch root that is
// removed on every exit path, and holds an exclusive lock on the channel
// folder it writes into. Stages run strictly in order; translation and
// synthesis fan out through the orchestrator and degrade failed sentences in
// place rather than failing the run.
package pipeline
