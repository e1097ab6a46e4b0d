package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"matchbook/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	owner := flag.String("owner", "", "owner username (required)")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel']")

	symbol := flag.String("symbol", "AAPL", "symbol to trade")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	price := flag.Uint64("price", 100, "limit price")
	qtyStr := flag.String("qty", "10", "quantity or comma-separated list (e.g. 10,20,50)")

	orderID := flag.Uint64("order-id", 0, "order id to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := uint8(0)
	if strings.ToLower(*sideStr) == "sell" {
		side = 1
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			msg := wire.NewOrderMessage{
				BaseMessage:   wire.BaseMessage{TypeOf: wire.NewOrder},
				ClientOrderID: uuid.New(),
				Side:          side,
				Shares:        qty,
				Price:         *price,
				Symbol:        *symbol,
				Username:      *owner,
			}
			if _, err := conn.Write(msg.Serialize()); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s order: %s %d @ %d\n", strings.ToUpper(*sideStr), *symbol, qty, *price)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		msg := wire.CancelOrderMessage{
			BaseMessage: wire.BaseMessage{TypeOf: wire.CancelOrder},
			OrderID:     *orderID,
			Symbol:      *symbol,
			Username:    *owner,
		}
		if _, err := conn.Write(msg.Serialize()); err != nil {
			log.Printf("failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> sent cancel request for order %d\n", *orderID)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press ctrl+c to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		val, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			log.Printf("warning: invalid quantity %q, skipping", p)
			continue
		}
		result = append(result, val)
	}
	return result
}

// readReports continuously reads and prints Report messages from the server.
func readReports(conn net.Conn) {
	for {
		header := make([]byte, 57)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := wire.ReportMessageType(header[0])
		side := header[1]
		orderID := binary.BigEndian.Uint64(header[10:18])
		shares := binary.BigEndian.Uint64(header[18:26])
		money := binary.BigEndian.Uint64(header[26:34])
		symbol := strings.TrimRight(string(header[34:50]), "\x00")
		counterpartyLen := binary.BigEndian.Uint16(header[50:52])
		errStrLen := binary.BigEndian.Uint32(header[52:56])

		varLen := int(counterpartyLen) + int(errStrLen)
		var varBuf []byte
		if varLen > 0 {
			varBuf = make([]byte, varLen)
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("error reading report body: %v", err)
				break
			}
		}

		counterparty := string(varBuf[:counterpartyLen])
		errStr := string(varBuf[counterpartyLen:])

		if msgType == wire.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
			continue
		}
		sideStr := "BUY"
		if side == 1 {
			sideStr = "SELL"
		}
		fmt.Printf("\n[EXECUTION] %s %s | shares: %d | money: %d | vs: %s | order: %d\n",
			sideStr, symbol, shares, money, counterparty, orderID)
	}
}
