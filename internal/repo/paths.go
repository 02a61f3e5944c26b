package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
)

// ErrNotFound is returned for any missing entity.
var ErrNotFound = docstore.ErrNotFound

const (
	projectsCollection      = "projects"
	notificationsCollection = "notifications"
	usersCollection         = "users"
	usernamesCollection     = "usernames"
)

func tasksCollection(projectID string) string {
	return docstore.Join(projectsCollection, projectID, "tasks")
}

func sprintsCollection(projectID string) string {
	return docstore.Join(projectsCollection, projectID, "sprints")
}

func epicsCollection(projectID string) string {
	return docstore.Join(projectsCollection, projectID, "epics")
}

func alertsCollection(userID string) string {
	return docstore.Join(usersCollection, userID, "alerts_history")
}

// projectFromCollection extracts {id} from "projects/{id}/...".
func projectFromCollection(collection string) (string, error) {
	parts := strings.Split(collection, "/")
	if len(parts) < 3 || parts[0] != projectsCollection {
		return "", fmt.Errorf("collection %q is not project scoped", collection)
	}
	return parts[1], nil
}

func notFound(err error) bool { return errors.Is(err, docstore.ErrNotFound) }
