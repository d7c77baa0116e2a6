// Command kotoba converts spoken-Japanese recordings into bilingual
// Japanese/English audio.
//
// The root command exposes:
//
//   - convert: acquire a local file or YouTube URL and run the pipeline
//   - config init|validate: manage the TOML configuration
//   - deps: report the external binaries and, optionally, API access
//   - cache stats|clear: inspect the translation cache
//   - transcript show|export: read saved transcripts
//
// Configuration is loaded once per invocation from --config, the default
// location, or ./kotoba.toml. A .env file in the working directory is read
// before anything else.
package main
