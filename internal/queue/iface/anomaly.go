package queue

import (
	"errors"
	"fmt"
)

// Category classifies a failed queue operation.
type Category int

const (
	Busy Category = iota
	Conflict
	Fault
	Forbidden
	Incorrect
	Interrupted
	NotFound
	Unavailable
	Unsupported
)

type categoryInfo struct {
	name  string
	fatal bool
}

var categories = map[Category]categoryInfo{
	Busy:        {name: "busy", fatal: false},
	Conflict:    {name: "conflict", fatal: true},
	Fault:       {name: "fault", fatal: true},
	Forbidden:   {name: "forbidden", fatal: true},
	Incorrect:   {name: "incorrect", fatal: true},
	Interrupted: {name: "interrupted", fatal: false},
	NotFound:    {name: "not-found", fatal: true},
	Unavailable: {name: "unavailable", fatal: false},
	Unsupported: {name: "unsupported", fatal: true},
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{Busy, Conflict, Fault, Forbidden, Incorrect, Interrupted, NotFound, Unavailable, Unsupported}
}

func (c Category) String() string {
	if info, ok := categories[c]; ok {
		return info.name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Fatal reports whether an anomaly of this category must stop the bridge.
// Unknown values are treated as fatal.
func (c Category) Fatal() bool {
	info, ok := categories[c]
	return !ok || info.fatal
}

// Anomaly is a classified queue-operation failure.
type Anomaly struct {
	Op       string
	Category Category
	Code     string
	Err      error
}

func (a *Anomaly) Error() string {
	if a.Code != "" {
		return fmt.Sprintf("%s: %s anomaly (%s): %v", a.Op, a.Category, a.Code, a.Err)
	}
	return fmt.Sprintf("%s: %s anomaly: %v", a.Op, a.Category, a.Err)
}

func (a *Anomaly) Unwrap() error {
	return a.Err
}

// CategoryOf returns the category of err. Errors that were never classified
// are reported as Fault.
func CategoryOf(err error) Category {
	var anomaly *Anomaly
	if errors.As(err, &anomaly) {
		return anomaly.Category
	}
	return Fault
}

// IsFatal reports whether err should stop the bridge.
func IsFatal(err error) bool {
	return err != nil && CategoryOf(err).Fatal()
}
