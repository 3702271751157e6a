// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for a bridge console",
	Long: `Drive a bridge console through an interactive terminal UI.

Pick a command from the list, type its parameter in the input box and press
Enter. Status lines, identify replies and forwarded records are shown in the
log:
  3 byte records  - sensor events (fdvs)
  11 byte records - link packets (fspn)
  2 byte records  - received link values (frcv)

Records are terminated by a carriage return, so a data byte of 0x0D splits
them. While exactly one of fdvs and frcv is on, split records are rejoined.
With both on, or after a forwarding timeout expires on the bridge, split
records show up as short text lines.

Tab switches between the command list and the parameter input. The
connection is reopened with backoff when it drops.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	client   *console.Client
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getClient() *console.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.client
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.client = console.NewClient(conn)
	cm.client.Timeout = time.Second
	cm.connInfo = connInfo
}

func (cm *connectionManager) close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn != nil {
		cm.conn.Close()
	}
}

// send writes one command; the reply arrives through the reader loop
func (cm *connectionManager) send(op string, params ...byte) error {
	client := cm.getClient()
	if client == nil {
		return fmt.Errorf("not connected")
	}
	return client.Send(op, params...)
}

func runControl(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{done: make(chan struct{})}
	cm.setConn(conn, connInfo)

	m := initialControlModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	// Identify the bridge on connect
	cm.send(console.OpIdentify)

	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.close()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(cm.done)
	cm.close()
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.readFromConnection() {
			cm.p.Send(connectionLostMsg{})
			if !cm.reconnect() {
				return
			}
		}
	}
}

// readFromConnection batches lines to the TUI until the connection fails.
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) readFromConnection() bool {
	client := cm.getClient()
	lines := make(chan []byte, 256)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		for {
			line, err := client.ReadLine()
			if errors.Is(err, console.ErrTimeout) {
				select {
				case <-cm.done:
					return
				default:
					continue
				}
			}
			if err != nil {
				return
			}
			select {
			case lines <- line:
			default:
			}
		}
	}()

	// Batch sender - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg
			drainLoop:
				for {
					select {
					case line := <-lines:
						batch.lines = append(batch.lines, line)
					default:
						break drainLoop
					}
				}
				if len(batch.lines) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	cm.close()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			cm.send(console.OpIdentify)
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
