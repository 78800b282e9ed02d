package firebase

import (
	"context"

	"go.uber.org/zap"
	firestore "google.golang.org/api/firestore/v1"

	"tasksync/internal/service"
)

// toggleAttempts bounds how often a contended toggle transaction is re-run.
const toggleAttempts = 3

// FetchTasks returns the session's tasks ordered by date, newest first.
func (c *Client) FetchTasks(ctx context.Context, sess service.Session) ([]service.Task, error) {
	if err := c.authorize(sess); err != nil {
		return nil, err
	}
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var result []service.Task
	err = c.db.Projects.Databases.Documents.List(c.userPath(sess.UID), tasksCollection).
		OrderBy(fieldDate+" desc").
		PageSize(PageSize).
		Pages(ctx, func(resp *firestore.ListDocumentsResponse) error {
			for _, doc := range resp.Documents {
				result = append(result, documentTask(doc))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// AddTask stores a new task and returns it with its server-assigned ID.
func (c *Client) AddTask(ctx context.Context, sess service.Session, draft service.Draft) (service.Task, error) {
	if err := c.authorize(sess); err != nil {
		return service.Task{}, err
	}
	if err := draft.Validate(); err != nil {
		return service.Task{}, err
	}
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return service.Task{}, err
	}
	defer cancel()

	doc, err := c.db.Projects.Databases.Documents.
		CreateDocument(c.userPath(sess.UID), tasksCollection, draftDocument(draft)).
		Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return documentTask(doc), nil
}

// ToggleTask negates the task's completion flag inside a transaction and
// returns the stored value.
func (c *Client) ToggleTask(ctx context.Context, sess service.Session, taskID string) (bool, error) {
	if err := c.authorize(sess); err != nil {
		return false, err
	}
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	name := c.taskPath(sess.UID, taskID)
	for attempt := 1; ; attempt++ {
		completed, err := c.toggleOnce(ctx, name)
		if err == nil {
			return completed, nil
		}
		if !isAborted(err) || attempt == toggleAttempts {
			return false, wrapError(err)
		}
		c.log.Debug("toggle transaction aborted, retrying",
			zap.String("task_id", taskID), zap.Int("attempt", attempt))
	}
}

func (c *Client) toggleOnce(ctx context.Context, name string) (bool, error) {
	docs := c.db.Projects.Databases.Documents

	tx, err := docs.BeginTransaction(c.database, &firestore.BeginTransactionRequest{}).Context(ctx).Do()
	if err != nil {
		return false, err
	}

	doc, err := docs.Get(name).Transaction(tx.Transaction).Context(ctx).Do()
	if err != nil {
		c.rollback(ctx, tx.Transaction)
		return false, err
	}
	next := !doc.Fields[fieldCompleted].BooleanValue

	_, err = docs.Commit(c.database, &firestore.CommitRequest{
		Transaction: tx.Transaction,
		Writes: []*firestore.Write{{
			Update: &firestore.Document{
				Name:   name,
				Fields: map[string]firestore.Value{fieldCompleted: boolValue(next)},
			},
			UpdateMask:      &firestore.DocumentMask{FieldPaths: []string{fieldCompleted}},
			CurrentDocument: &firestore.Precondition{Exists: true},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return false, err
	}
	return next, nil
}

func (c *Client) rollback(ctx context.Context, tx string) {
	_, err := c.db.Projects.Databases.Documents.
		Rollback(c.database, &firestore.RollbackRequest{Transaction: tx}).
		Context(ctx).Do()
	if err != nil {
		c.log.Debug("rollback failed", zap.Error(err))
	}
}

// DeleteTask removes a task. A missing document is reported as NotFound.
func (c *Client) DeleteTask(ctx context.Context, sess service.Session, taskID string) error {
	if err := c.authorize(sess); err != nil {
		return err
	}
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = c.db.Projects.Databases.Documents.Delete(c.taskPath(sess.UID, taskID)).
		CurrentDocumentExists(true).
		Context(ctx).Do()
	return wrapError(err)
}
