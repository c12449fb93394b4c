// Command metaviewer drives a single logged-in session against a region
// simulator: it authenticates, holds the UDP circuit, decodes inbound
// world state, and republishes it to a local rendering front-end over the
// UI bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/osgrid/metaviewer/internal/capability"
	"github.com/osgrid/metaviewer/internal/config"
	"github.com/osgrid/metaviewer/internal/httputil"
	"github.com/osgrid/metaviewer/internal/inventory"
	"github.com/osgrid/metaviewer/internal/monitoring"
	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/session"
	"github.com/osgrid/metaviewer/internal/uibridge"
	"github.com/osgrid/metaviewer/internal/viewer"
	"github.com/osgrid/metaviewer/internal/world"
)

var (
	simAddr     = flag.String("sim-addr", "", "region simulator UDP address (host:port)")
	seedURL     = flag.String("seed-url", "", "region seed capability URL")
	circuitCode = flag.Uint("circuit-code", 0, "circuit code issued by the login server")
	agentIDFlag = flag.String("agent-id", "", "agent uuid")
	sessionID   = flag.String("session-id", "", "session uuid")
	configFile  = flag.String("config", config.DefaultConfigPath, "path to JSON tuning configuration file")
	dbPath      = flag.String("db-path", "metaviewer.db", "path to the sqlite inventory store")
	uiAddr      = flag.String("ui-bridge-addr", "", "loopback address the UI bridge sends framed events to")
)

func main() {
	flag.Parse()

	cfg := config.EmptySessionConfig()
	if *configFile != "" {
		if loaded, err := config.LoadSessionConfig(*configFile); err == nil {
			cfg = loaded
		} else {
			monitoring.Logf("metaviewer: no config loaded from %s: %v", *configFile, err)
		}
	}

	if *simAddr == "" || *seedURL == "" || *agentIDFlag == "" || *sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: metaviewer -sim-addr host:port -seed-url URL -agent-id UUID -session-id UUID -circuit-code N")
		os.Exit(2)
	}
	agentID, err := uuid.Parse(*agentIDFlag)
	if err != nil {
		log.Fatalf("metaviewer: invalid -agent-id: %v", err)
	}
	sessID, err := uuid.Parse(*sessionID)
	if err != nil {
		log.Fatalf("metaviewer: invalid -session-id: %v", err)
	}
	remote, err := net.ResolveUDPAddr("udp", *simAddr)
	if err != nil {
		log.Fatalf("metaviewer: invalid -sim-addr: %v", err)
	}

	store, err := inventory.Open(*dbPath)
	if err != nil {
		log.Fatalf("metaviewer: open inventory store: %v", err)
	}
	defer store.Close()

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		log.Fatalf("metaviewer: listen udp: %v", err)
	}
	defer conn.Close()

	bridgeAddr := cfg.GetUIBridgeAddr()
	if *uiAddr != "" {
		bridgeAddr = *uiAddr
	}
	bridgeConn, err := net.Dial("udp", bridgeAddr)
	if err != nil {
		log.Fatalf("metaviewer: dial ui bridge %s: %v", bridgeAddr, err)
	}
	defer bridgeConn.Close()
	emitter := uibridge.NewEmitter(bridgeConn)

	caps := capability.New(httputil.NewStandardClient(nil))

	actor := session.New(conn, remote, cfg)

	terrain := world.NewTerrainCache(terrainObserver{emitter})
	objects := world.NewObjectCache(&viewer.SessionObjectRequester{Actor: actor, AgentID: agentID, SessionID: sessID})
	viewer.RegisterWorldHandlers(actor, objects, terrain)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := session.LoginRecord{
		AgentID:       agentID,
		SessionID:     sessID,
		CircuitCode:   uint32(*circuitCode),
		SeedURL:       *seedURL,
		SimulatorAddr: remote,
	}
	actor.RegisterHandler(packets.KindRegionHandshake, func(a *session.Actor, msg packets.Message) error {
		rh := msg.(packets.RegionHandshake)
		return a.CompleteHandshake(rec, rh.RegionFlags)
	})

	loginCtx, cancel := context.WithTimeout(ctx, cfg.GetCapabilityTimeout())
	err = actor.Login(loginCtx, rec, caps)
	cancel()
	if err != nil {
		log.Fatalf("metaviewer: login: %v", err)
	}

	// AvatarTable is driven by the inventory-descendants capability stream,
	// which feeds SetOutfitSize/RecordItem as the current outfit folder is
	// walked; that HTTP polling loop lives outside this composition root.
	finalizer := viewer.NewAvatarFinalizer(caps, actor.CapabilityURL("GetMesh"), emitter)
	_ = world.NewAvatarTable(store, finalizer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		actor.RunAckDrainTimer(ctx)
	}()

	monitoring.Logf("metaviewer: session running, circuit %s", remote)
	if err := actor.Run(ctx); err != nil {
		monitoring.Logf("metaviewer: session ended: %v", err)
	}
	wg.Wait()
}

type terrainObserver struct {
	emitter *uibridge.Emitter
}

func (o terrainObserver) OnPatchReady(p world.Patch) {
	payload := make([]byte, 8+len(p.Height)*4)
	putU32(payload[0:4], uint32(p.Coord.X))
	putU32(payload[4:8], uint32(p.Coord.Y))
	for i, h := range p.Height {
		putF32(payload[8+i*4:8+i*4+4], h)
	}
	if err := o.emitter.Emit(uibridge.EventTerrainPatch, payload); err != nil {
		monitoring.Logf("metaviewer: emit terrain patch %+v: %v", p.Coord, err)
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putF32(b []byte, f float32) {
	putU32(b, math.Float32bits(f))
}
