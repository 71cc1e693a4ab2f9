package classify

// Kind is the coarse shape of a raw notification. Platforms disagree on which
// operations they report for a single edit, so the classifier never decides
// anything from Kind; it is carried for diagnostics only.
type Kind string

const (
	KindChange   Kind = "change"
	KindRename   Kind = "rename"
	KindOverflow Kind = "overflow"
)

// RawEvent is one notification from the watch primitive. Path is empty when
// the platform could not say which file changed.
type RawEvent struct {
	Kind Kind
	Path string
}

// Verdict is the outcome of classifying a RawEvent.
type Verdict int

const (
	Ignore Verdict = iota
	Notify
)

func (verdict Verdict) String() string {
	if verdict == Notify {
		return "notify"
	}
	return "ignore"
}

// Reason explains a Verdict.
type Reason string

const (
	ReasonUnresolvable   Reason = "unresolvable"
	ReasonIgnoredPattern Reason = "ignored_pattern"
	ReasonMissing        Reason = "missing"
	ReasonDirectory      Reason = "directory"
	ReasonContentChanged Reason = "content_changed"
	ReasonUnchanged      Reason = "unchanged"
	ReasonNewFile        Reason = "new_file"
	ReasonReadFailed     Reason = "read_failed"
	ReasonOther          Reason = "other"
)

type Decision struct {
	Verdict Verdict
	Reason  Reason
	Path    string
}

func (decision Decision) Notify() bool {
	return decision.Verdict == Notify
}
