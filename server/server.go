package server

import (
	"net"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/quickpoll/quickpoll-server/configure"
	"github.com/quickpoll/quickpoll-server/room"
	"github.com/quickpoll/quickpoll-server/utils"

	log "github.com/sirupsen/logrus"
)

type Server struct {
	app        *fiber.App
	ln         net.Listener
	registry   *room.Registry
	sendBuffer int
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func NewServer(registry *room.Registry) *Server {
	ln, err := net.Listen(configure.Config.GetString("listener_network"), configure.Config.GetString("listener_address"))
	checkErr(err)

	server := &Server{
		ln:         ln,
		registry:   registry,
		sendBuffer: configure.Config.GetInt("session_send_buffer"),
		app: fiber.New(fiber.Config{
			ErrorHandler: errorHandler,
		}),
	}

	server.app.Use(recover.New())
	server.app.Use(cors.New())
	server.app.Use(logger.New(logger.Config{
		Output: &customLogger{},
	}))

	// The mobile client dials ws://host/parties/main/<code>, one
	// connection per participant, scoped to the poll code.
	party := server.app.Group("/parties/main/:code")

	party.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	party.Get("/", websocket.New(server.handleSocket))

	server.app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(&fiber.Map{
			"status":  404,
			"message": "We don't know what you're looking for.",
		})
	})

	go func() {
		err = server.app.Listener(server.ln)
		if err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server
}

func errorHandler(c *fiber.Ctx, err error) error {
	log.Errorf("internal err=%v", spew.Sdump(err))

	return c.SendStatus(500)
}

func (s *Server) Shutdown() error {
	s.registry.Close()
	return s.ln.Close()
}
