/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"net"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/sd"
	"github.com/reneherrero/someip-go/someip/server"
	"github.com/reneherrero/someip-go/someip/stats"
)

// EchoServiceID is the service this daemon offers: it echoes back whatever
// payload it receives, over both TCP and UDP, so someip-cli has something
// to find/call against out of the box.
const EchoServiceID someip.ServiceID = 0x1234

// EchoInstanceID is the only instance this daemon offers.
const EchoInstanceID someip.InstanceID = 0x0001

// EchoMethodID is the method handled by the echo service.
const EchoMethodID someip.MethodID = 0x0001

var (
	serveIface      string
	serveTCPAddr    string
	serveUDPAddr    string
	serveLogLevel   string
	serveConfigFile string
	serveMonAddr    string
	serveDrainFile  string
)

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveIface, "iface", "eth0", "interface to join the SD multicast group on")
	serveCmd.Flags().StringVar(&serveTCPAddr, "tcpaddr", ":30509", "address to bind the TCP echo service on")
	serveCmd.Flags().StringVar(&serveUDPAddr, "udpaddr", ":30509", "address to bind the UDP echo service on")
	serveCmd.Flags().StringVar(&serveMonAddr, "monitoringaddr", ":8888", "address to serve Prometheus metrics on")
	serveCmd.Flags().StringVar(&serveLogLevel, "loglevel", "info", "log level: debug, info, warning, error")
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "path to a YAML file with dynamic settings")
	serveCmd.Flags().StringVar(&serveDrainFile, "drainfile", "/var/tmp/kill_someipd", "killswitch file; its presence drains the daemon")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SD server and echo service",
	Run: func(_ *cobra.Command, _ []string) {
		if err := runServe(); err != nil {
			log.Fatal(err)
		}
	},
}

func runServe() error {
	switch serveLogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", serveLogLevel)
	}

	dc := server.DynamicConfig{
		ReadTimeout:        30 * time.Second,
		MaxMessagePayload:  someip.DefaultMaxMessagePayload,
		MaxDatagramSize:    someip.DefaultMaxDatagramSize,
		DrainCheckInterval: server.DefaultDrainCheckInterval,
	}
	if serveConfigFile != "" {
		loaded, err := server.ReadDynamicConfig(serveConfigFile)
		if err != nil {
			return err
		}
		dc = *loaded
	}

	st := stats.New()
	go func() {
		if err := st.Serve(serveMonAddr); err != nil {
			log.WithError(err).Warn("someipd: metrics server stopped")
		}
	}()

	handler := func(_ net.Conn, req someip.Message) *someip.Message {
		return echo(req)
	}
	tcpSrv, err := server.ListenTCP(serveTCPAddr, handler)
	if err != nil {
		return err
	}
	tcpSrv.SetReadTimeout(dc.ReadTimeout)
	tcpSrv.SetMaxMessagePayload(dc.MaxMessagePayload)
	tcpSrv.SetStats(st)

	udpHandler := func(_ net.Addr, req someip.Message) *someip.Message {
		return echo(req)
	}
	udpSrv, err := server.ListenUDP(serveUDPAddr, udpHandler)
	if err != nil {
		return err
	}
	udpSrv.SetMaxDatagramSize(dc.MaxDatagramSize)
	udpSrv.SetStats(st)
	go reportActiveReassemblies(udpSrv, st)

	sdSrv, err := sd.NewServer(serveIface)
	if err != nil {
		return err
	}

	drain := server.NewFileDrain(serveDrainFile, tcpSrv, udpSrv, sdSrv)
	drain.Interval = dc.DrainCheckInterval
	go drain.Start()

	var g errgroup.Group
	g.Go(tcpSrv.Serve)
	g.Go(udpSrv.Serve)
	g.Go(func() error {
		sdSrv.Run()
		return nil
	})

	var opts []sd.Option
	if tcpOpt := tcpEndpointOption(tcpSrv.Addr()); tcpOpt != nil {
		opts = append(opts, tcpOpt)
	}
	if err := sdSrv.Offer(EchoServiceID, EchoInstanceID, 1, 0, 30, opts); err != nil {
		log.WithError(err).Error("someipd: failed to offer echo service")
	}

	notifyReady()
	go watchdogLoop()

	log.Infof("someipd: serving on tcp=%s udp=%s, offering service %s instance %s", tcpSrv.Addr(), udpSrv.LocalAddr(), EchoServiceID, EchoInstanceID)
	return g.Wait()
}

func echo(req someip.Message) *someip.Message {
	if req.Header.MessageType == someip.RequestNoReturn {
		return nil
	}
	resp := someip.CreateResponse(&req).Payload(req.Payload).Build()
	return &resp
}

func tcpEndpointOption(addr net.Addr) sd.Option {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}
	ip := tcpAddr.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return sd.IPv4EndpointOption{Address: ip, Proto: sd.ProtoTCP, Port: uint16(tcpAddr.Port)}
}

func reportActiveReassemblies(udpSrv *server.UDPServer, st *stats.Stats) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		st.SetActiveReassemblies(udpSrv.Reassembler().ActiveCount())
	}
}

func notifyReady() {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported {
		return
	}
	if err != nil {
		log.WithError(err).Warn("someipd: sd_notify READY failed")
	}
}

func watchdogLoop() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
			log.WithError(err).Warn("someipd: sd_notify WATCHDOG failed")
		}
	}
}
