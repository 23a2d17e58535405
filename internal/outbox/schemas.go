package outbox

const entryCreatedSchema = `{
  "type": "object",
  "title": "EntryCreated",
  "properties": {
    "entry_id": {"type": "string"},
    "activity_type_id": {"type": "integer"},
    "value": {"type": "integer"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "activity_type_id", "value", "created_at"],
  "additionalProperties": false
}`
