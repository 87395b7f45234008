package verifier

// Stage names the step at which a verification stopped.
type Stage string

const (
	StageCheckLink   Stage = "check_link"
	StageException   Stage = "exception"
	StageNotFound    Stage = "not_found"
	StageUnknownTool Stage = "unknown_tool"
)

// Request is one verification asked for by a caller.
type Request struct {
	Tool  string
	URL   string
	Proxy *string
}

// Result is the normalized outcome of a dispatch. Exactly one of Payload
// (when OK) or Stage/Detail (when not OK) is meaningful.
type Result struct {
	OK      bool   `json:"ok"`
	Payload any    `json:"result,omitempty"`
	Stage   Stage  `json:"stage,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func success(payload any) Result {
	return Result{OK: true, Payload: payload}
}

func failure(stage Stage, detail string, err error) Result {
	return Result{Stage: stage, Detail: detail, Err: err}
}
