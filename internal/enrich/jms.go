package enrich

import (
	"context"
	"regexp"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

const (
	jmsListenerFQN = "org.springframework.jms.annotation.JmsListener"
	jmsTemplateFQN = "org.springframework.jms.core.JmsTemplate"
	jmsTemplatePkg = "org.springframework.jms.core"
)

// Send-style JmsTemplate methods whose first string literal argument is
// a destination name.
var jmsSendMethods = []string{"send", "convertAndSend", "sendAndReceive"}

var jmsSendPatterns = buildSendPatterns()

func buildSendPatterns() map[string]struct {
	withLiteral *regexp.Regexp
	anyCall     *regexp.Regexp
} {
	patterns := make(map[string]struct {
		withLiteral *regexp.Regexp
		anyCall     *regexp.Regexp
	}, len(jmsSendMethods))
	for _, name := range jmsSendMethods {
		patterns[name] = struct {
			withLiteral *regexp.Regexp
			anyCall     *regexp.Regexp
		}{
			withLiteral: regexp.MustCompile(`\.` + name + `\s*\(\s*"([^"]*)"`),
			anyCall:     regexp.MustCompile(`\.` + name + `\s*\(`),
		}
	}
	return patterns
}

// SpringJMS derives JMSListener, JMSProducer and JMSDestination nodes.
// Listeners come from the listener annotation; producers from types
// importing the messaging template, with destination names recovered
// from string literals at send call sites in the raw source text.
// Listener and producer destinations sharing a name merge into one
// destination node.
type SpringJMS struct {
	store graph.Store
	log   jobs.Logger
}

func NewSpringJMS(store graph.Store, log jobs.Logger) *SpringJMS {
	return &SpringJMS{store: store, log: log}
}

func (e *SpringJMS) Tag() string { return "spring-jms" }

func (e *SpringJMS) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"listeners": 0, "producers": 0, "destinations": 0}
	destinationsSeen := make(map[string]struct{})

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	e.processListeners(ctx, classes, stats, destinationsSeen)
	e.processProducers(ctx, classes, stats, destinationsSeen)

	e.log.Log("info", "Spring JMS: %d listeners, %d producers, %d destinations",
		stats["listeners"], stats["producers"], stats["destinations"])
	return stats, nil
}

func (e *SpringJMS) processListeners(ctx context.Context, classes []*graph.Class, stats map[string]int, seen map[string]struct{}) {
	for _, cls := range classes {
		for _, method := range cls.Methods {
			ann := graph.FindAnnotation(method.Annotations, jmsListenerFQN)
			if ann == nil {
				continue
			}

			destination := strings.Trim(ann.Arg("destination").First(), `"'`)

			e.log.Log("info", "  JMS Listener: %s on %q (class=%s)", method.Name, destination, cls.Name)

			if destination != "" {
				if _, ok := seen[destination]; !ok {
					if err := e.store.MergeDestination(ctx, destination); err != nil {
						e.log.Log("warn", "  Failed to merge destination %q: %v", destination, err)
						continue
					}
					seen[destination] = struct{}{}
					stats["destinations"]++
				}
			}

			err := e.store.CreateJMSListener(ctx, &graph.JMSListener{
				Destination:      destination,
				Selector:         ann.Arg("selector").First(),
				Concurrency:      ann.Arg("concurrency").First(),
				ContainerFactory: ann.Arg("containerFactory").First(),
				Method:           method.FullName,
			})
			if err != nil {
				e.log.Log("warn", "  Failed to create JMSListener: %v", err)
				continue
			}
			stats["listeners"]++
		}
	}
}

func (e *SpringJMS) processProducers(ctx context.Context, classes []*graph.Class, stats map[string]int, seen map[string]struct{}) {
	for _, cls := range classes {
		if !importsType(cls, jmsTemplateFQN, jmsTemplatePkg) {
			continue
		}

		destinations, hasSendCalls := scanSendCalls(cls.Source)
		if !hasSendCalls {
			continue
		}

		if len(destinations) == 0 {
			e.log.Log("info", "  JMS Producer: %s (destinations=dynamic)", cls.Name)
		} else {
			e.log.Log("info", "  JMS Producer: %s (destinations=%v)", cls.Name, destinations)
		}

		for _, dest := range destinations {
			if _, ok := seen[dest]; !ok {
				if err := e.store.MergeDestination(ctx, dest); err != nil {
					e.log.Log("warn", "  Failed to merge destination %q: %v", dest, err)
					continue
				}
				seen[dest] = struct{}{}
				stats["destinations"]++
			}
		}

		err := e.store.CreateJMSProducer(ctx, &graph.JMSProducer{
			Name:         cls.Name,
			Class:        cls.FullName,
			Destinations: destinations,
		})
		if err != nil {
			e.log.Log("warn", "  Failed to create JMSProducer: %v", err)
			continue
		}
		stats["producers"]++
	}
}

// scanSendCalls finds destination literals passed to send methods in
// raw source. A send call without a visible literal still marks the
// class as a producer (dynamic destination).
func scanSendCalls(source string) ([]string, bool) {
	var destinations []string
	destSeen := make(map[string]struct{})
	hasSendCalls := false

	for _, name := range jmsSendMethods {
		p := jmsSendPatterns[name]
		matches := p.withLiteral.FindAllStringSubmatch(source, -1)
		if len(matches) > 0 {
			hasSendCalls = true
			for _, m := range matches {
				if _, dup := destSeen[m[1]]; !dup {
					destSeen[m[1]] = struct{}{}
					destinations = append(destinations, m[1])
				}
			}
		} else if p.anyCall.MatchString(source) {
			hasSendCalls = true
		}
	}
	return destinations, hasSendCalls
}
