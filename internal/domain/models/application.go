package models

// ApplicationsCollection holds university applications tracked for users.
const ApplicationsCollection = "applications"

// ApplicationStatus is the progress of an application.
type ApplicationStatus string

const (
	StatusNotStarted   ApplicationStatus = "Not Started"
	StatusInProgress   ApplicationStatus = "In Progress"
	StatusSubmitted    ApplicationStatus = "Submitted"
	StatusInterviewing ApplicationStatus = "Interviewing"
	StatusAccepted     ApplicationStatus = "Accepted"
	StatusRejected     ApplicationStatus = "Rejected"
)

// ApplicationStatuses lists every status in workflow order.
var ApplicationStatuses = []ApplicationStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusSubmitted,
	StatusInterviewing,
	StatusAccepted,
	StatusRejected,
}

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	for _, v := range ApplicationStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Application is one university application belonging to a user.
type Application struct {
	ID         string            `bson:"_id" json:"id"`
	University string            `bson:"university" json:"university"`
	Program    string            `bson:"program" json:"program"`
	Status     ApplicationStatus `bson:"status" json:"status"`
	UserID     string            `bson:"user_id" json:"user_id"`
}
