package tracker

// WorkItemStatus is the lifecycle state of a work item
type WorkItemStatus string

const (
	WorkItemNew        WorkItemStatus = "NEW"
	WorkItemReady      WorkItemStatus = "READY"
	WorkItemInProgress WorkItemStatus = "IN_PROGRESS"
	WorkItemInReview   WorkItemStatus = "IN_REVIEW"
	WorkItemDone       WorkItemStatus = "DONE"
	WorkItemCancelled  WorkItemStatus = "CANCELLED"
)

var workItemStatuses = map[WorkItemStatus]bool{
	WorkItemNew:        false,
	WorkItemReady:      false,
	WorkItemInProgress: false,
	WorkItemInReview:   false,
	WorkItemDone:       true,
	WorkItemCancelled:  true,
}

// Valid reports whether s is a known status
func (s WorkItemStatus) Valid() bool {
	_, ok := workItemStatuses[s]
	return ok
}

// Terminal reports whether no further work is expected
func (s WorkItemStatus) Terminal() bool {
	return workItemStatuses[s]
}

// BugStatus is the lifecycle state of a bug item
type BugStatus string

const (
	BugReported   BugStatus = "REPORTED"
	BugConfirmed  BugStatus = "CONFIRMED"
	BugInProgress BugStatus = "IN_PROGRESS"
	BugFixed      BugStatus = "FIXED"
	BugClosed     BugStatus = "CLOSED"
	BugRejected   BugStatus = "REJECTED"
)

var bugStatuses = map[BugStatus]bool{
	BugReported:   false,
	BugConfirmed:  false,
	BugInProgress: false,
	BugFixed:      false,
	BugClosed:     true,
	BugRejected:   true,
}

// Valid reports whether s is a known status
func (s BugStatus) Valid() bool {
	_, ok := bugStatuses[s]
	return ok
}

// Terminal reports whether the bug is closed out
func (s BugStatus) Terminal() bool {
	return bugStatuses[s]
}
