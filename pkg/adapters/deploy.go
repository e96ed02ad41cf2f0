package adapters

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

// ServerController owns one running model endpoint.
type ServerController struct {
	evaluator.HandleBase
	id     string
	url    string
	app    *fiber.App
	logger *log.Logger
}

func (c *ServerController) HandleKind() string { return "controller" }

func (c *ServerController) String() string { return fmt.Sprintf("<controller url=%s>", c.url) }

func (c *ServerController) URL() string { return c.url }

// Stop shuts the endpoint down, reporting whether it finished within the
// timeout.
func (c *ServerController) Stop(timeout time.Duration) bool {
	deregister(c.id)
	if err := c.app.ShutdownWithTimeout(timeout); err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("endpoint shutdown failed")
		return false
	}
	return true
}

// active controllers, so the CLI can stop leftover endpoints on exit
var (
	activeMu sync.Mutex
	active   = map[string]*ServerController{}
)

func register(c *ServerController) {
	activeMu.Lock()
	active[c.id] = c
	activeMu.Unlock()
}

func deregister(id string) {
	activeMu.Lock()
	delete(active, id)
	activeMu.Unlock()
}

// ShutdownAll stops every controller still running.
func ShutdownAll() {
	activeMu.Lock()
	leftover := make([]*ServerController, 0, len(active))
	for _, c := range active {
		leftover = append(leftover, c)
	}
	active = map[string]*ServerController{}
	activeMu.Unlock()
	for _, c := range leftover {
		c.Stop(5 * time.Second)
	}
}

// Deploy serves model over HTTP at endpointURL with /health and /predict
// routes. When the address cannot be bound it returns a plain endpoint
// dict instead of failing the script.
func (s *Set) Deploy(model evaluator.Model, endpointURL string) (evaluator.Value, error) {
	host, port := "127.0.0.1", "8080"
	if u, err := url.Parse(endpointURL); err == nil && u.Host != "" {
		if h := u.Hostname(); h != "" {
			host = h
		}
		if p := u.Port(); p != "" {
			port = p
		}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "cherryscript",
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "model": model.ModelName()})
	})

	app.Post("/predict", func(c *fiber.Ctx) error {
		payload, err := evaluator.UnmarshalValue(c.Body())
		if err != nil {
			return c.JSON(fiber.Map{"error": err.Error(), "predictions": []any{}})
		}
		rows := evaluator.Value(evaluator.NewArray())
		if d, ok := payload.(*evaluator.Dict); ok {
			if r, ok := d.Get("rows"); ok {
				rows = r
			}
		}
		frame, err := s.Frame(rows)
		if err != nil {
			return c.JSON(fiber.Map{"error": err.Error(), "predictions": []any{}})
		}
		preds, err := model.Predict(frame)
		if err != nil {
			return c.JSON(fiber.Map{"error": err.Error(), "predictions": []any{}})
		}
		out := make([]any, len(preds))
		for i, p := range preds {
			out[i] = evaluator.ValueToAny(p)
		}
		return c.JSON(fiber.Map{"predictions": out})
	})

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		s.logger.Warn().Err(err).Str("url", endpointURL).Msg("cannot bind endpoint, returning unserved endpoint")
		d := evaluator.NewDict()
		d.Set("url", evaluator.String{Value: endpointURL})
		return d, nil
	}

	ctrl := &ServerController{
		id:     uuid.New().String(),
		url:    endpointURL,
		app:    app,
		logger: s.logger,
	}
	go func() {
		if err := app.Listener(ln); err != nil {
			s.logger.Warn().Err(err).Str("url", endpointURL).Msg("endpoint server stopped")
		}
	}()
	register(ctrl)
	time.Sleep(s.grace)
	s.logger.Info().Str("url", endpointURL).Str("model", model.ModelName()).Msg("model deployed")
	return ctrl, nil
}

// Undeploy stops a controller handle. Other targets cannot be stopped and
// report false.
func (s *Set) Undeploy(target evaluator.Value, timeout time.Duration) bool {
	if c, ok := target.(*ServerController); ok {
		return c.Stop(timeout)
	}
	return false
}
