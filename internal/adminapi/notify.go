package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/notify"
	"github.com/talkincode/toughmeeting/internal/webserver"
)

func registerNotifyRoutes() {
	webserver.ApiGET("/notify/jobs", listNotifyJobs)
	webserver.ApiPOST("/notify/jobs/:name/run", runNotifyJob)
}

var notifyJobs = []string{notify.JobDigest, notify.JobReminder, notify.JobStatus}

// listNotifyJobs reports the next scheduled run of every job.
func listNotifyJobs(c echo.Context) error {
	notifier := GetAppContext(c).Notifier()
	loc := location(c)
	jobs := make([]map[string]interface{}, 0, len(notifyJobs))
	for _, name := range notifyJobs {
		item := map[string]interface{}{"name": name}
		if next := notifier.NextRun(name); !next.IsZero() {
			item["next_run"] = next.In(loc)
		}
		jobs = append(jobs, item)
	}
	return ok(c, jobs)
}

// runNotifyJob fires a job now; its log entries carry trigger_type manual.
func runNotifyJob(c echo.Context) error {
	name := c.Param("name")
	appCtx := GetAppContext(c)
	report, err := appCtx.Notifier().Fire(c.Request().Context(), name, appCtx.Clock().Now(), domain.TriggerManual)
	switch {
	case errors.Is(err, notify.ErrUnknownJob):
		return fail(c, http.StatusNotFound, "UNKNOWN_JOB", "Unknown notification job", name)
	case errors.Is(err, notify.ErrJobBusy):
		return fail(c, http.StatusConflict, "JOB_BUSY", "The job is already running", name)
	case errors.Is(err, notify.ErrStopped):
		return fail(c, http.StatusServiceUnavailable, "SCHEDULER_STOPPED", "The scheduler is shutting down", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "JOB_FAILED", "Job run failed", err.Error())
	}
	audit(c, "notify.run", name)
	return ok(c, report)
}
