package documents

// Schedule selects how a batch's items are executed.
type Schedule string

const (
	// Sequential processes one item at a time in input order.
	Sequential Schedule = "sequential"
	// Concurrent processes items in parallel, bounded by Policy.Concurrency.
	Concurrent Schedule = "concurrent"
)

// FaultPolicy selects how MoveEntries reports rename failures.
type FaultPolicy string

const (
	// FailBatch marks the whole batch unsuccessful and returns
	// ErrRelocationFailed.
	FailBatch FaultPolicy = "fail_batch"
	// ReportPartial keeps the batch successful and lists faults in Failed.
	ReportPartial FaultPolicy = "report_partial"
)

// Policy configures the orchestrators.
type Policy struct {
	Ingestion   Schedule
	Removal     Schedule
	Relocation  Schedule
	OnMoveFault FaultPolicy
	// DedupeDocpaths skips locations already embedded in the workspace.
	DedupeDocpaths bool
	// Concurrency bounds Concurrent schedules. Zero means DefaultConcurrency.
	Concurrency int
}

// DefaultConcurrency bounds concurrent schedules when Policy.Concurrency is 0.
const DefaultConcurrency = 8

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Ingestion:   Sequential,
		Removal:     Sequential,
		Relocation:  Concurrent,
		OnMoveFault: FailBatch,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Ingestion == "" {
		p.Ingestion = d.Ingestion
	}
	if p.Removal == "" {
		p.Removal = d.Removal
	}
	if p.Relocation == "" {
		p.Relocation = d.Relocation
	}
	if p.OnMoveFault == "" {
		p.OnMoveFault = d.OnMoveFault
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}
	return p
}

// AddResult reports the outcome of AddDocuments.
type AddResult struct {
	// Embedded lists the locations whose vectors and ledger row were written.
	Embedded []string `json:"embedded"`
	// FailedToEmbed lists display names (title, else filename) of items
	// that failed to vectorize.
	FailedToEmbed []string `json:"failedToEmbed"`
	// Errors holds the distinct vectorization error messages.
	Errors []string `json:"errors"`
	// Skipped lists locations already embedded when DedupeDocpaths is set.
	Skipped []string `json:"skipped,omitempty"`
	// Orphaned lists locations whose vectors were written but whose ledger
	// row could not be. They cannot be removed through RemoveDocuments.
	Orphaned []string `json:"orphaned,omitempty"`
}

// WorkspaceUpload is the outcome of one workspace in UploadToWorkspaces.
type WorkspaceUpload struct {
	Slug   string     `json:"slug"`
	Result *AddResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// UploadResult reports the outcome of UploadToWorkspaces.
type UploadResult struct {
	Location   string            `json:"location"`
	Workspaces []WorkspaceUpload `json:"workspaces"`
}

// Move is one requested relocation, relative to the actor's scoped root.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MoveFailure is a move that was rejected or whose rename failed.
type MoveFailure struct {
	Move
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// MoveResult reports the outcome of MoveEntries. Skipped moves reference
// embedded files and were never attempted; Failed moves were attempted or
// rejected by the containment guard.
type MoveResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Moved   []Move        `json:"moved"`
	Skipped []Move        `json:"skipped"`
	Failed  []MoveFailure `json:"failed"`
}
