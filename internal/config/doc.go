// Package config provides layered, strictly parsed configuration for the
// chassis composition layer. It resolves a fixed tree of recognized keys
// from an ordered source chain and aggregates every rejected field into a
// single error.
//
// # Sources
//
// The default chain, lowest to highest precedence:
//
//	1. Compiled defaults (Default)
//	2. Optional dotenv override file (./.env or $CHASSIS_ENV_FILE)
//	3. Process environment variables
//
// Precedence is per field: the override file may pin APP_PORT while the
// environment sets LOG_LEVEL. Unrecognized keys are ignored; the process
// environment is shared with whatever else runs in it.
//
// # Strictness
//
// Values always arrive as strings and are parsed strictly:
//
//	APP_DEBUG=yes        rejected (booleans are true/false/1/0, any case)
//	APP_PORT=30x         rejected (integers consume the whole string)
//	APP_ENV=DEV          accepted, normalized to "dev"
//
// A set-but-invalid value is never silently replaced by a default. Loading
// performs a full pass and returns one *LoadError naming every offending
// key, its raw value, and the reason.
//
// # Feature flags
//
// The Features section requests capabilities (db, cache, search, broker)
// and cross-cutting behaviors at runtime. A capability only starts when the
// matching client is also compiled into the binary; requesting one that is
// not compiled in fails startup. Flags derives the semantic FeatureFlags
// view used by the infra registry and the app builder.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // err lists every bad field, one per line
//	}
//
// Tests feed exact key sets without touching the environment:
//
//	cfg, err := config.LoadFrom(config.Map("test", map[string]string{
//	    "APP_PORT": "9090",
//	}))
package config
