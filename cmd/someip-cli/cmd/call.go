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
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	someip "github.com/reneherrero/someip-go/someip/protocol"
	"github.com/reneherrero/someip-go/someip/client"
)

var (
	callAddrFlag    string
	callProtoFlag   string
	callServiceFlag uint16
	callMethodFlag  uint16
	callPayloadFlag string
	callTimeoutFlag time.Duration
)

func init() {
	RootCmd.AddCommand(callCmd)
	callCmd.Flags().StringVar(&callAddrFlag, "addr", "", "host:port of the service to call")
	callCmd.Flags().StringVar(&callProtoFlag, "proto", "tcp", "transport to use: tcp or udp")
	callCmd.Flags().Uint16Var(&callServiceFlag, "service", 0, "service_id to call")
	callCmd.Flags().Uint16Var(&callMethodFlag, "method", 0, "method_id to call")
	callCmd.Flags().StringVar(&callPayloadFlag, "payload", "", "request payload, sent as raw bytes of the given string")
	callCmd.Flags().DurationVar(&callTimeoutFlag, "timeout", client.DefaultTimeout, "call timeout")
	_ = callCmd.MarkFlagRequired("addr")
	_ = callCmd.MarkFlagRequired("service")
	_ = callCmd.MarkFlagRequired("method")
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Send a request and print the response",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runCall(); err != nil {
			log.Fatal(err)
		}
	},
}

func runCall() error {
	req := someip.NewBuilder(someip.ServiceID(callServiceFlag), someip.MethodID(callMethodFlag)).
		Payload([]byte(callPayloadFlag)).
		Build()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeoutFlag+time.Second)
	defer cancel()

	var resp someip.Message
	var err error
	switch callProtoFlag {
	case "tcp":
		resp, err = callTCP(ctx, req)
	case "udp":
		resp, err = callUDP(ctx, req)
	default:
		return fmt.Errorf("unrecognized --proto %q, want tcp or udp", callProtoFlag)
	}
	if err != nil {
		return err
	}

	fmt.Printf("return_code: %s\n", returnCodeString(resp.Header.ReturnCode))
	fmt.Printf("payload: %q\n", resp.Payload)
	return nil
}

func callTCP(ctx context.Context, req someip.Message) (someip.Message, error) {
	conn, err := net.Dial("tcp", callAddrFlag)
	if err != nil {
		return someip.Message{}, err
	}
	defer conn.Close()

	c := client.New(conn, client.WithTimeout(callTimeoutFlag))
	return c.Call(ctx, req)
}

func callUDP(ctx context.Context, req someip.Message) (someip.Message, error) {
	addr, err := net.ResolveUDPAddr("udp", callAddrFlag)
	if err != nil {
		return someip.Message{}, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return someip.Message{}, err
	}
	defer conn.Close()

	c := client.NewUDPClient(conn, 0x0001)
	c.SetTimeout(callTimeoutFlag)
	return c.CallTo(ctx, addr, req)
}
