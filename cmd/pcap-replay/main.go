// Command pcap-replay decodes a recorded capture of a session's UDP
// circuit traffic through the runtime's wire codec, for regression
// testing against real captured traffic without a live simulator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/osgrid/metaviewer/internal/capture"
)

func main() {
	pcapPath := flag.String("pcap", "", "path to a pcap file of recorded circuit traffic")
	port := flag.Int("port", 0, "the simulator's negotiated UDP circuit port")
	flag.Parse()

	if *pcapPath == "" || *port == 0 {
		fmt.Fprintln(os.Stderr, "usage: pcap-replay -pcap <file> -port <circuit-port>")
		os.Exit(2)
	}

	datagrams, err := capture.ReadDatagrams(*pcapPath, uint16(*port))
	if err != nil {
		log.Fatalf("pcap-replay: %v", err)
	}
	fmt.Printf("read %d datagrams on port %d\n", len(datagrams), *port)

	decoded := capture.Replay(datagrams)
	var ok, failed int
	for _, d := range decoded {
		if d.Err != nil {
			failed++
			continue
		}
		ok++
	}
	fmt.Printf("decoded %d ok, %d failed\n", ok, failed)
}
