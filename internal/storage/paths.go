package storage

import "fmt"

// Canonical persisted layout, backend-agnostic. Only the opaque session id
// appears in paths, never participant names.
//
//	sessions/<sid>/session.json
//	sessions/<sid>/raw/events.jsonl
//	sessions/<sid>/raw/chat.jsonl
//	sessions/<sid>/problems/<pid>/chat.jsonl
//	sessions/<sid>/problems/<pid>/runs/run_NNNN/{code.html,meta.json}
//	sessions/<sid>/problems/<pid>/diffs/IIII_to_JJJJ.patch
//	sessions/<sid>/problems/<pid>/submit/{final_code.html,meta.json}
//	sessions/<sid>/problems/<pid>/nb_runs/nb_run_NNNN/{notebook.json,diff.json,changes.txt}

// SessionDir returns the root path for one session.
func SessionDir(sessionID string) string {
	return "sessions/" + sessionID
}

// SessionManifestPath returns the session manifest location.
func SessionManifestPath(sessionID string) string {
	return SessionDir(sessionID) + "/session.json"
}

// RawDir returns the journal directory for a session.
func RawDir(sessionID string) string {
	return SessionDir(sessionID) + "/raw"
}

// EventsPath returns the flat event journal location.
func EventsPath(sessionID string) string {
	return RawDir(sessionID) + "/events.jsonl"
}

// SessionChatPath is the fallback chat journal for turns with no problem context.
func SessionChatPath(sessionID string) string {
	return RawDir(sessionID) + "/chat.jsonl"
}

// ProblemDir returns the root path for one problem within a session.
func ProblemDir(sessionID, problemID string) string {
	return SessionDir(sessionID) + "/problems/" + problemID
}

// ProblemChatPath returns the problem-scoped chat journal location.
func ProblemChatPath(sessionID, problemID string) string {
	return ProblemDir(sessionID, problemID) + "/chat.jsonl"
}

// RunsDir returns the run-snapshot directory for a problem.
func RunsDir(sessionID, problemID string) string {
	return ProblemDir(sessionID, problemID) + "/runs"
}

// RunDir returns the directory of one 1-based, zero-padded run snapshot.
func RunDir(sessionID, problemID string, index int) string {
	return fmt.Sprintf("%s/run_%04d", RunsDir(sessionID, problemID), index)
}

// NotebookRunsDir returns the notebook-snapshot directory for a problem.
func NotebookRunsDir(sessionID, problemID string) string {
	return ProblemDir(sessionID, problemID) + "/nb_runs"
}

// NotebookRunDir returns the directory of one notebook snapshot.
func NotebookRunDir(sessionID, problemID string, index int) string {
	return fmt.Sprintf("%s/nb_run_%04d", NotebookRunsDir(sessionID, problemID), index)
}

// SubmitDir returns the final-submission directory for a problem.
func SubmitDir(sessionID, problemID string) string {
	return ProblemDir(sessionID, problemID) + "/submit"
}

// DiffsDir returns the diff directory for a problem.
func DiffsDir(sessionID, problemID string) string {
	return ProblemDir(sessionID, problemID) + "/diffs"
}

// DiffPath returns the location of the diff between two run indices.
func DiffPath(sessionID, problemID string, from, to int) string {
	return fmt.Sprintf("%s/%04d_to_%04d.patch", DiffsDir(sessionID, problemID), from, to)
}

// RecordingsDir returns the screen-recording chunk directory for a session.
func RecordingsDir(sessionID string) string {
	return SessionDir(sessionID) + "/recordings"
}

// SurveyPath returns the survey answers location for a session.
func SurveyPath(sessionID string) string {
	return SessionDir(sessionID) + "/survey.json"
}
