package async

import (
	"database/sql"
)

// JobScanArgs holds the nullable column targets needed when scanning a job
// row. Nullable columns scan into these and are folded into the Job by
// ProcessJobScanArgs.
type JobScanArgs struct {
	PayloadPath sql.NullString
	Payload     sql.NullString
	ErrorMsg    sql.NullString
	StartedAt   sql.NullTime
	FinishedAt  sql.NullTime
}

// GetJobScanArgs returns a JobScanArgs struct ready for scanning
func GetJobScanArgs() *JobScanArgs {
	return &JobScanArgs{}
}

// StandardJobSelectColumns returns the canonical column list for job
// queries, in the order GetJobScanTargets expects.
func StandardJobSelectColumns() string {
	return "id, user_id, repo_url, job_type, status, payload_path, payload, error_msg, created_at, started_at, finished_at"
}

// GetJobScanTargets returns scan destinations for the job and scan args,
// in the order of StandardJobSelectColumns.
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.UserID,
		&job.RepoURL,
		&job.Kind,
		&job.Status,
		&args.PayloadPath,
		&args.Payload,
		&args.ErrorMsg,
		&job.CreatedAt,
		&args.StartedAt,
		&args.FinishedAt,
	}
}

// ProcessJobScanArgs folds the scanned nullable columns into the job.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) {
	if args.PayloadPath.Valid {
		job.PayloadPath = args.PayloadPath.String
	}
	if args.Payload.Valid {
		job.Payload = []byte(args.Payload.String)
	}
	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.StartedAt.Valid {
		t := args.StartedAt.Time
		job.StartedAt = &t
	}
	if args.FinishedAt.Valid {
		t := args.FinishedAt.Time
		job.FinishedAt = &t
	}
}
