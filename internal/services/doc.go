// Package services defines the error taxonomy shared by the scanner,
// scheduler, and transcode worker.
//
// Failures are tagged with sentinel markers so callers can branch on kind
// with errors.Is instead of matching message text: a probe failure keeps a
// file rescannable, a tool failure fails the job, a store failure rolls the
// transaction back and moves on.
package services
