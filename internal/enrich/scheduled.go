package enrich

import (
	"context"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

const scheduledFQN = "org.springframework.scheduling.annotation.Scheduled"

// SpringScheduled records methods carrying the scheduling annotation
// with their timing arguments kept verbatim.
type SpringScheduled struct {
	store graph.Store
	log   jobs.Logger
}

func NewSpringScheduled(store graph.Store, log jobs.Logger) *SpringScheduled {
	return &SpringScheduled{store: store, log: log}
}

func (e *SpringScheduled) Tag() string { return "spring-scheduled" }

func (e *SpringScheduled) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"scheduled_tasks": 0}

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	for _, cls := range classes {
		for _, method := range cls.Methods {
			ann := graph.FindAnnotation(method.Annotations, scheduledFQN)
			if ann == nil {
				continue
			}

			e.log.Log("info", "  Scheduled: %s.%s", cls.Name, method.Name)

			err := e.store.CreateScheduledTask(ctx, &graph.ScheduledTask{
				Cron:         ann.Arg("cron").First(),
				FixedDelay:   ann.Arg("fixedDelay").First(),
				FixedRate:    ann.Arg("fixedRate").First(),
				InitialDelay: ann.Arg("initialDelay").First(),
				Zone:         ann.Arg("zone").First(),
				Method:       method.FullName,
			})
			if err != nil {
				e.log.Log("warn", "  Failed to create ScheduledTask: %v", err)
				continue
			}
			stats["scheduled_tasks"]++
		}
	}

	e.log.Log("info", "Spring Scheduled: %d tasks", stats["scheduled_tasks"])
	return stats, nil
}
