package archive

import (
	"go.uber.org/zap"
)

// Job creates an archive and prunes old ones. It satisfies cron.Job.
type Job struct {
	Params Params
	Keep   int
	Log    *zap.Logger
}

// Run performs one archive pass. Failures are logged.
func (j Job) Run() {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	path, err := Create(j.Params)
	if err != nil {
		log.Warn("archive failed", zap.Error(err))
		return
	}
	log.Info("archive written", zap.String("path", path))

	removed, err := Prune(j.Params.Dir, j.Keep)
	if err != nil {
		log.Warn("archive prune", zap.Error(err))
	}
	if len(removed) > 0 {
		log.Info("old archives removed", zap.Strings("paths", removed))
	}
}
