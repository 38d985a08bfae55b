package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/neliav/tapsync/internal/analysis"
	"github.com/neliav/tapsync/internal/audio"
	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/mixer"
	"github.com/neliav/tapsync/internal/session"
	"github.com/neliav/tapsync/internal/storage"
	"github.com/neliav/tapsync/pkg/logger"
)

var (
	outputRoot string
	dbPath     string
	sampleRate int
	fakeAudio  bool
	seed       int64
)

func init() {
	flag.StringVar(&outputRoot, "out", getEnvOrDefault("TAPSYNC_OUTPUT_DIR", "output"), "Root directory for participant output")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("TAPSYNC_DB_PATH", storage.DefaultDBFile), "Path to the SQLite trial registry")
	flag.IntVar(&sampleRate, "rate", 44100, "Audio sample rate in Hz")
	flag.BoolVar(&fakeAudio, "fake-audio", false, "Run against the file-backed fake recorder (dry run, no hardware)")
	flag.Int64Var(&seed, "seed", 0, "Allocation RNG seed (0 = time-based)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func printBanner() {
	fmt.Println(`
 _____                     _____
|_   _|_ _ _ __  ___ _   _|  _  \  ___
  | |/ _' | '_ \/ __| | | | | | | / __|
  | | (_| | |_) \__ \ |_| | |_| | \__ \
  |_|\__,_| .__/|___/\__, |_____/ |___/
          |_|        |___/
       Rhythm Tapping Experiment Runner`)
}

func main() {
	flag.Parse()
	log := logger.GetLogger()
	printBanner()

	if !fakeAudio {
		// Hardware capture is bound through the Recorder interface;
		// no host driver backend ships with this build.
		log.Fatalf("No audio backend configured; run with -fake-audio for a dry run")
	}

	registry, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		log.Fatalf("Opening trial registry: %v", err)
	}
	defer registry.Close()

	recorder := &audio.FakeRecorder{}
	runner, err := session.NewRunner(
		session.WithOutputRoot(outputRoot),
		session.WithSampleRate(sampleRate),
		session.WithRecorder(recorder),
		session.WithPlayer(recorder),
		session.WithAnalyzer(analysis.FixtureAnalyzer{}),
		session.WithRegistry(registry),
	)
	if err != nil {
		log.Fatalf("%v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	alloc := session.NewRandomAllocation(rng)
	state := session.NewSessionState(alloc)

	if err := runSession(runner, state); err != nil {
		log.Fatalf("Session aborted: %v", err)
	}
}

// runSession drives the state machine from the terminal. Every
// recoverable error blocks here for an explicit operator decision;
// failed trials are retried, never skipped.
func runSession(runner *session.Runner, state session.SessionState) error {
	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)

	prompt := func(msg string) string {
		fmt.Print(msg)
		if !in.Scan() {
			return ""
		}
		return in.Text()
	}

	for state.State != session.StateComplete {
		var err error
		switch state.State {
		case session.StateWelcome:
			fmt.Println("\nThis experiment investigates rhythm perception and synchronization.")
			fmt.Println("Participation takes about 15 minutes. Press Enter to start.")
			prompt("")
			state, err = session.Transition(state, session.EventNext)

		case session.StateIDEntry:
			id := prompt("Participant ID (9 digits): ")
			if verr := session.ValidateParticipantID(id); verr != nil {
				fmt.Printf("Invalid ID: %v\n", verr)
				state, err = session.Transition(state, session.EventIDRejected)
				break
			}
			state.ParticipantID = id
			if _, rerr := runner.Register(id, state.Allocation); rerr != nil {
				var verr *experr.ValidationError
				if errors.As(rerr, &verr) {
					state, err = session.Transition(state, session.EventIDRejected)
					break
				}
				return rerr
			}
			state, err = session.Transition(state, session.EventIDAccepted)

		case session.StateInstructions:
			fmt.Println("\nYou will hear and tap along with 2 rhythms, 12 trials each.")
			fmt.Println("Each rhythm starts and ends with 3 marker beats - do not tap these.")
			prompt("Press Enter to continue.")
			state, err = session.Transition(state, session.EventNext)

		case session.StateTappingInstructions:
			fmt.Println("\nTap with your right index finger on the surface next to the touchpad.")
			fmt.Println("Do not tap keys, mouse buttons or the touchpad.")
			prompt("Press Enter to continue.")
			state, err = session.Transition(state, session.EventNext)

		case session.StateEarCheckRight:
			state, err = runEarCheck(runner, state, ctx, mixer.EarRight, prompt)

		case session.StateEarCheckLeft:
			state, err = runEarCheck(runner, state, ctx, mixer.EarLeft, prompt)

		case session.StatePractice:
			if perr := runner.PrepareStimulus(state); perr != nil {
				return perr
			}
			fmt.Printf("\nRhythm %d of 2: playing practice twice. Just listen, no tapping.\n", state.Stimulus)
			donec := make(chan error, 1)
			if perr := runner.PlayPractice(ctx, state, func(e error) { donec <- e }); perr != nil {
				return perr
			}
			if perr := <-donec; perr != nil {
				return perr
			}
			state, err = session.Transition(state, session.EventPracticeDone)

		case session.StateTrial:
			fmt.Printf("\nTrial %d of %d. Press Enter to start recording.\n",
				state.NextTrialNumber(), session.TrialsPerStimulus)
			prompt("")
			if _, terr := runner.RunTrial(ctx, state); terr != nil {
				fmt.Printf("Trial failed: %v\n", terr)
				var perr *experr.PersistenceError
				if errors.As(terr, &perr) {
					return terr
				}
				answer := prompt("Retry trial? [y/N]: ")
				if answer != "y" && answer != "Y" {
					return terr
				}
				state, err = session.Transition(state, session.EventTrialFailed)
				break
			}
			state, err = session.Transition(state, session.EventTrialDone)

		case session.StateBreak:
			fmt.Printf("\nBreak: %d seconds. Press Enter to skip.\n", state.BreakSeconds)
			fired := make(chan struct{})
			timer := session.StartBreak(time.Duration(state.BreakSeconds)*time.Second, func() {
				close(fired)
			})
			skipped := make(chan struct{})
			go func() {
				prompt("")
				close(skipped)
			}()
			select {
			case <-fired:
			case <-skipped:
				timer.Cancel()
			}
			state, err = session.Transition(state, session.EventContinue)
		}
		if err != nil {
			return err
		}
	}

	fmt.Println("\nExperiment complete. Thank you for participating; your data has been saved.")
	return nil
}

func runEarCheck(runner *session.Runner, state session.SessionState, ctx context.Context, ear mixer.Ear, prompt func(string) string) (session.SessionState, error) {
	fmt.Printf("\n%s ear check: you will hear a beat, tap once when you hear it.\n", ear)
	prompt("Press Enter to start the check.")
	detected, err := runner.RunEarCheck(ctx, ear)
	if err != nil {
		fmt.Printf("Ear check error: %v\n", err)
		return session.Transition(state, session.EventTapMissed)
	}
	if !detected {
		fmt.Printf("No tap detected for the %s ear. Try again with a firmer tap.\n", ear)
		return session.Transition(state, session.EventTapMissed)
	}
	return session.Transition(state, session.EventTapDetected)
}
