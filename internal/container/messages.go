package container

import "github.com/loykin/launchr/internal/fault"

// Operations reported in fault errors and used to pick messages.
const (
	OpCreate   = "create"
	OpRetrieve = "retrieve"
	OpUpdate   = "update"
	OpDelete   = "delete"
)

const (
	msgExists = "A file with that name already exists. If you wish to update the file, call Update. " +
		"If you want to replace the file, call Delete and then try to create the file again."
	msgMissing = "The script container file doesn't exist so there's nothing to update."
)

var messages = map[string]map[fault.Kind]string{
	OpCreate: {
		fault.NotFound:    "The script container's file couldn't be created because the path was invalid (for example, it's on an unmapped drive).",
		fault.Path:        "The script container's file couldn't be created because the resulting path would be too long.",
		fault.IO:          "The script container's file couldn't be created because the specified path was a file, or the network name isn't known.",
		fault.Permission:  "The script container's file couldn't be created because this application doesn't have access to the destination.",
		fault.Unsupported: "The script container's file couldn't be created because the path was in an invalid format.",
	},
	OpRetrieve: {
		fault.NotFound:    "The script container's XML file couldn't be found.",
		fault.Path:        "The script container's XML file couldn't be retrieved as the resulting path would be too long.",
		fault.IO:          "The script container's XML file couldn't be retrieved because an Input / Output error occurred while opening the file.",
		fault.Permission:  "The script container's XML file couldn't be retrieved because this application doesn't have access to the destination.",
		fault.Unsupported: "The script container's XML file couldn't be retrieved because the path was in an invalid format.",
	},
	OpDelete: {
		fault.NotFound:    "The script container's file couldn't be deleted because the path was invalid (for example, it's on an unmapped drive or it couldn't be found).",
		fault.Path:        "The script container's file couldn't be deleted because the resulting path would be too long.",
		fault.IO:          "The script container's file couldn't be deleted because it's the application's current working directory, being used by another process, or contains a read-only file.",
		fault.Permission:  "The script container's file couldn't be deleted because this application doesn't have the proper permissions.",
		fault.Unsupported: "The script container's file couldn't be deleted because the path was in an invalid format.",
	},
}

// Message returns the operator-facing text for a failed op. Unknown kinds,
// and ops without a table, fall back to the underlying error text.
func Message(op string, k fault.Kind, err error) string {
	if op == OpUpdate {
		op = OpCreate
	}
	if m, ok := messages[op][k]; ok {
		return m
	}
	if err != nil {
		return err.Error()
	}
	return "The script container operation failed: " + op
}
