package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quizroom/internal/client"
	"quizroom/internal/domain"
	"quizroom/internal/transport/ws"
)

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv("QUIZROOM_URL")
	if defaultURL == "" {
		defaultURL = "ws://localhost:8080/ws"
	}

	var (
		serverURL = flag.String("url", defaultURL, "WebSocket endpoint of the quiz server")
		roomCode  = flag.String("room", "", "room code to join")
		name      = flag.String("name", "", "display name")
		spectator = flag.Bool("spectator", false, "join as a spectator")
		create    = flag.Bool("create", false, "create a new room and host it")
		quizPath  = flag.String("questions", "quiz.yaml", "YAML quiz used with -create")
		storePath = flag.String("store", defaultStorePath(), "where the session is remembered between runs")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	manager := client.NewManager(client.Options{
		URL:    *serverURL,
		Store:  client.NewFileStore(*storePath),
		Logger: logger,
	})

	var questions []domain.Question
	if *create {
		var err error
		if questions, err = client.LoadQuestions(*quizPath); err != nil {
			logger.Fatal().Err(err).Str("path", *quizPath).Msg("cannot host without questions")
		}
	} else if *roomCode != "" {
		if err := manager.JoinRoom(*roomCode, *name, *spectator); err != nil {
			logger.Fatal().Err(err).Msg("failed to remember room")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	var round atomic.Int64
	var pendingCreate atomic.Bool
	pendingCreate.Store(*create)

	go func() {
		for {
			select {
			case ev := <-manager.Events():
				printEvent(ev, &round)
			case state := <-manager.States():
				fmt.Printf("* connection %s\n", state)
				// the room is created once the first connection is up
				if state == client.StateConnected && pendingCreate.CompareAndSwap(true, false) {
					if err := manager.CreateRoom(ws.CreateRoomPayload{Name: *name, Settings: domain.DefaultRoomSettings(), Questions: questions}); err != nil {
						logger.Error().Err(err).Msg("failed to create room")
					}
				}
				if state.IsTerminal() {
					fmt.Println("* type /retry to reconnect")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleLine(manager, line, int(round.Load())); err != nil {
			fmt.Printf("! %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	manager.Close()
}

// handleLine sends an answer, or runs a slash command
func handleLine(m *client.Manager, line string, round int) error {
	if !strings.HasPrefix(line, "/") {
		return m.Send(ws.MsgSubmitAnswer, ws.SubmitAnswerPayload{RoundIndex: round, Answer: line})
	}

	fields := strings.Fields(line)
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch fields[0] {
	case "/retry":
		m.Retry()
		return nil
	case "/start":
		return m.Send(ws.MsgStartGame, nil)
	case "/next":
		return m.Send(ws.MsgNextRound, nil)
	case "/end":
		return m.Send(ws.MsgEndRound, nil)
	case "/conclude":
		return m.Send(ws.MsgConcludeGame, nil)
	case "/vote":
		return m.Send(ws.MsgCastVote, ws.CastVotePayload{TargetPlayerID: arg(1)})
	case "/correct", "/wrong":
		return m.Send(ws.MsgEvaluateAnswer, ws.EvaluateAnswerPayload{
			TargetPlayerID: arg(1),
			IsCorrect:      fields[0] == "/correct",
		})
	case "/kick":
		return m.Send(ws.MsgKickPlayer, ws.KickPlayerPayload{
			TargetPlayerID: arg(1),
			Reason:         strings.Join(fields[min(2, len(fields)):], " "),
		})
	case "/ping":
		return m.Send(ws.MsgPing, nil)
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func printEvent(ev client.Event, round *atomic.Int64) {
	switch ev.Type {
	case domain.EventStateSnapshot:
		var s domain.Snapshot
		if err := json.Unmarshal(ev.Payload, &s); err != nil {
			return
		}
		round.Store(int64(s.CurrentQuestionIndex))
		fmt.Printf("[%s] %s, round %d/%d, %d players\n",
			s.RoomCode, s.Phase, s.CurrentQuestionIndex+1, s.TotalQuestions, len(s.Players))
		if s.CurrentQuestion != nil {
			fmt.Printf("  Q: %s\n", s.CurrentQuestion.Text)
		}
	case domain.EventTimerTick:
		var p domain.TimerTickPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		round.Store(int64(p.RoundIndex))
		if p.Remaining <= 5 || p.Remaining%10 == 0 {
			fmt.Printf("  %ds left\n", p.Remaining)
		}
	case domain.EventIdentity:
		var p domain.IdentityPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		fmt.Printf("* joined %s as %s (%s)\n", p.RoomCode, p.Name, p.Role)
	case domain.EventError:
		var p domain.ErrorPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		fmt.Printf("! %s: %s\n", p.Code, p.Message)
	case domain.EventKicked:
		var p domain.KickedPayload
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Printf("* kicked: %s\n", p.Reason)
	case domain.EventBoardUpdated, domain.EventPong:
	default:
		fmt.Printf("  %s %s\n", ev.Type, ev.Payload)
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quizroom-session.json"
	}
	return filepath.Join(dir, "quizroom", "session.json")
}
