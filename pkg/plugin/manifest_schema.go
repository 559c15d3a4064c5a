package plugin

// ManifestSchema is the JSON Schema for plugin manifest validation
const ManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["help", "command"],
  "properties": {
    "help": {
      "type": "array",
      "minItems": 1,
      "items": { "type": "string", "minLength": 1 },
      "description": "Display names, the first one is primary"
    },
    "tags": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 },
      "description": "Menu categories"
    },
    "command": {
      "type": "string",
      "minLength": 1,
      "description": "Regular expression tested against the post-prefix text"
    },
    "case_sensitive": {
      "type": "boolean"
    },
    "description": {
      "type": "string"
    },
    "handler": {
      "type": "string",
      "pattern": "^[a-z0-9_-]+$",
      "description": "Name of a built-in handler"
    },
    "exec": {
      "type": "string",
      "minLength": 1,
      "description": "Path of a go-plugin binary, relative to the manifest"
    },
    "disabled": {
      "type": "boolean"
    },
    "config": {
      "type": "object",
      "description": "Handler specific settings"
    }
  },
  "oneOf": [
    { "required": ["handler"], "not": { "required": ["exec"] } },
    { "required": ["exec"], "not": { "required": ["handler"] } }
  ],
  "additionalProperties": false
}`
