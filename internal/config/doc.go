// Package config defines the client settings and provides helpers to load,
// validate and save them in YAML format.
//
// Values from the YAML file can be overridden by FACE_ATTENDANCE_* environment
// variables, optionally loaded from a dotenv file next to the settings.
package config
