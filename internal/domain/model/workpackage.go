package model

// WorkPackage is one unit of replay input: an Announcement or an Evaluation.
// The set of implementations is closed.
type WorkPackage interface {
	isWorkPackage()
}

// Announcement makes a new item known to the algorithm. Nothing is scored.
type Announcement struct {
	Item *Item
}

func (Announcement) isWorkPackage() {}

// Evaluation is a click to be scored and then learned from.
type Evaluation struct {
	Data        *ClickData
	GroundTruth IDSet // complete-session item ids minus the ids seen so far
}

func (Evaluation) isWorkPackage() {}
