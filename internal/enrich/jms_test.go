package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

func TestJMSListenerAndProducerShareDestination(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "messaging",
		&graph.Class{
			Name: "OrderConsumer", FullName: "com.acme.OrderConsumer",
			Package: "com.acme", Kind: "class",
			Methods: []*graph.Method{{
				Name: "onOrder",
				Annotations: []graph.Annotation{
					{Name: jmsListenerFQN, Args: map[string]graph.Value{
						"destination": graph.StringValue("orders.queue"),
						"concurrency": graph.StringValue("3-5"),
					}},
				},
			}},
		},
		&graph.Class{
			Name: "OrderPublisher", FullName: "com.acme.OrderPublisher",
			Package: "com.acme", Kind: "class",
			Imports: []string{"org.springframework.jms.core.JmsTemplate"},
			Source: `public class OrderPublisher {
    private JmsTemplate jmsTemplate;
    public void publish(Order order) {
        jmsTemplate.convertAndSend("orders.queue", order);
    }
}`,
		},
	)

	stats, err := NewSpringJMS(s, jobs.NoopLogger{}).Enrich(context.Background(), "messaging")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["listeners"])
	assert.Equal(t, 1, stats["producers"])
	assert.Equal(t, 1, stats["destinations"], "listener and producer merge into one destination")

	listeners := s.JMSListeners()
	require.Len(t, listeners, 1)
	assert.Equal(t, "orders.queue", listeners[0].Destination)
	assert.Equal(t, "3-5", listeners[0].Concurrency)

	producers := s.JMSProducers()
	require.Len(t, producers, 1)
	assert.Equal(t, []string{"orders.queue"}, producers[0].Destinations)
}

func TestJMSListenerWithoutDestination(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "messaging", &graph.Class{
		Name: "EventConsumer", FullName: "com.acme.EventConsumer",
		Package: "com.acme", Kind: "class",
		Methods: []*graph.Method{{
			Name: "onEvent",
			Annotations: []graph.Annotation{
				{Name: jmsListenerFQN, Args: map[string]graph.Value{
					"containerFactory": graph.StringValue("eventFactory"),
				}},
			},
		}},
	})

	stats, err := NewSpringJMS(s, jobs.NoopLogger{}).Enrich(context.Background(), "messaging")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["listeners"])
	assert.Equal(t, 0, stats["destinations"])

	listeners := s.JMSListeners()
	require.Len(t, listeners, 1)
	assert.Empty(t, listeners[0].Destination)
	assert.Equal(t, "eventFactory", listeners[0].ContainerFactory)
	assert.Empty(t, s.Destinations(), "no destination node without a destination name")
}

func TestJMSProducerDynamicDestination(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "messaging", &graph.Class{
		Name: "EventPublisher", FullName: "com.acme.EventPublisher",
		Package: "com.acme", Kind: "class",
		Imports: []string{"org.springframework.jms.core.JmsTemplate"},
		Source: `public class EventPublisher {
    public void publish(String topic, Event e) {
        jmsTemplate.convertAndSend(topic, e);
    }
}`,
	})

	stats, err := NewSpringJMS(s, jobs.NoopLogger{}).Enrich(context.Background(), "messaging")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["producers"])
	assert.Zero(t, stats["destinations"])

	producers := s.JMSProducers()
	require.Len(t, producers, 1)
	assert.Empty(t, producers[0].Destinations)
}

func TestJMSIgnoresNonSenders(t *testing.T) {
	// Importing JmsTemplate without any send call site is not a
	// producer.
	s := graph.NewMemory()
	seedClasses(t, s, "messaging", &graph.Class{
		Name: "Config", FullName: "com.acme.Config",
		Package: "com.acme", Kind: "class",
		Imports: []string{"org.springframework.jms.core.JmsTemplate"},
		Source:  `public class Config { JmsTemplate jmsTemplate() { return new JmsTemplate(); } }`,
	})

	stats, err := NewSpringJMS(s, jobs.NoopLogger{}).Enrich(context.Background(), "messaging")
	require.NoError(t, err)
	assert.Zero(t, stats["producers"])
}

func TestScheduledTaskArguments(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "batch", &graph.Class{
		Name: "Reaper", FullName: "com.acme.Reaper",
		Package: "com.acme", Kind: "class",
		Methods: []*graph.Method{{
			Name: "sweep",
			Annotations: []graph.Annotation{
				{Name: scheduledFQN, Args: map[string]graph.Value{
					"cron": graph.StringValue("0 0 * * * *"),
					"zone": graph.StringValue("UTC"),
				}},
			},
		}},
	})

	stats, err := NewSpringScheduled(s, jobs.NoopLogger{}).Enrich(context.Background(), "batch")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["scheduled_tasks"])

	tasks := s.ScheduledTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "0 0 * * * *", tasks[0].Cron)
	assert.Equal(t, "UTC", tasks[0].Zone)
	assert.Equal(t, "com.acme.Reaper.sweep", tasks[0].Method)
}

func TestSpringDataRepository(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "data", &graph.Class{
		Name: "UserRepository", FullName: "com.acme.UserRepository",
		Package: "com.acme", Kind: "interface",
		Supertypes: []string{"JpaRepository"},
		Source:     `public interface UserRepository extends JpaRepository<User, Long> {}`,
	})

	stats, err := NewSpringData(s, jobs.NoopLogger{}).Enrich(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["repositories"])

	repos := s.DataRepositories()
	require.Len(t, repos, 1)
	assert.Equal(t, "JPA", repos[0].RepoType)
	assert.Equal(t, "User", repos[0].EntityType)
}

func TestSpringDataSkipsClasses(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "data", &graph.Class{
		Name: "UserDao", FullName: "com.acme.UserDao",
		Package: "com.acme", Kind: "class",
		Supertypes: []string{"JpaRepository"},
	})

	stats, err := NewSpringData(s, jobs.NoopLogger{}).Enrich(context.Background(), "data")
	require.NoError(t, err)
	assert.Zero(t, stats["repositories"])
}
