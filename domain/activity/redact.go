package activity

// DefaultRedactedLabel is shown in place of the title of a redacted entry
// when the entry carries no label of its own. Deployments override it via
// configuration; it is business copy, not logic.
const DefaultRedactedLabel = "Busy - perfectly legal and secret activities"

// RedactEvent returns a copy of e with sensitive fields removed when the
// event is redacted: the title is replaced by the entry's redacted label
// (or fallback), and project, notes and reference are cleared. Public
// events are returned unchanged.
func RedactEvent(e Event, fallback string) Event {
	if e.Visibility != VisibilityRedacted {
		return e
	}
	label := e.RedactedLabel
	if label == "" {
		label = fallback
	}
	e.Title = label
	e.Project = ""
	e.Notes = ""
	e.ReferenceID = ""
	return e
}

// RedactActive applies the same substitution to an ActiveRecord.
func RedactActive(a ActiveRecord, fallback string) ActiveRecord {
	if a.Visibility != VisibilityRedacted {
		return a
	}
	label := a.RedactedLabel
	if label == "" {
		label = fallback
	}
	a.Title = label
	a.Project = ""
	a.Notes = ""
	a.ReferenceID = ""
	return a
}
