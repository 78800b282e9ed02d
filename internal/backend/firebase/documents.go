package firebase

import (
	"path"
	"time"

	firestore "google.golang.org/api/firestore/v1"

	"tasksync/internal/service"
)

// Task document fields.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldPriority    = "priority"
	fieldDate        = "date"
	fieldDeadline    = "deadline"
	fieldCompleted   = "isCompleted"
	fieldCreatedAt   = "createdAt"

	tasksCollection = "tasks"

	// legacyDateLayout is the DD/MM/YYYY form older clients wrote dates in.
	legacyDateLayout = "02/01/2006"
)

// userPath is the parent of a user's task collection.
func (c *Client) userPath(uid string) string {
	return c.database + "/documents/users/" + uid
}

func (c *Client) taskPath(uid, taskID string) string {
	return c.userPath(uid) + "/" + tasksCollection + "/" + taskID
}

func stringValue(s string) firestore.Value {
	return firestore.Value{StringValue: s, ForceSendFields: []string{"StringValue"}}
}

func boolValue(b bool) firestore.Value {
	return firestore.Value{BooleanValue: b, ForceSendFields: []string{"BooleanValue"}}
}

// draftDocument builds the document stored for a new task. createdAt is
// left out so the server's create time stands in for it.
func draftDocument(d service.Draft) *firestore.Document {
	return &firestore.Document{
		Fields: map[string]firestore.Value{
			fieldTitle:       stringValue(d.Title),
			fieldDescription: stringValue(d.Description),
			fieldPriority:    stringValue(string(d.Priority)),
			fieldDate:        stringValue(d.Date),
			fieldDeadline:    stringValue(d.Deadline),
			fieldCompleted:   boolValue(false),
		},
	}
}

// documentTask converts a stored document. Missing fields take their zero
// value; an unknown priority reads as Medium.
func documentTask(doc *firestore.Document) service.Task {
	f := doc.Fields
	t := service.Task{
		ID:          path.Base(doc.Name),
		Title:       f[fieldTitle].StringValue,
		Description: f[fieldDescription].StringValue,
		Priority:    service.Priority(f[fieldPriority].StringValue),
		Date:        storedDate(f[fieldDate].StringValue),
		Deadline:    storedDate(f[fieldDeadline].StringValue),
		Completed:   f[fieldCompleted].BooleanValue,
	}
	if !t.Priority.Valid() {
		t.Priority = service.PriorityMedium
	}
	t.CreatedAt = parseTimestamp(f[fieldCreatedAt].TimestampValue)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = parseTimestamp(doc.CreateTime)
	}
	return t
}

// storedDate reads a date field, rewriting the legacy form into
// service.DateLayout.
func storedDate(s string) string {
	if t, err := time.Parse(legacyDateLayout, s); err == nil {
		return t.Format(service.DateLayout)
	}
	return s
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
