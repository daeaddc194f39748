package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"redstring/pkg/models"
)

func main() {
	server := "127.0.0.1:7070"
	if len(os.Args) > 1 {
		server = os.Args[1]
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		panic(err)
	}

	// one socket both subscribes and receives
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte("SUBSCRIBE"), serverAddr); err != nil {
		panic(err)
	}

	fmt.Println("Subscribed to announcements at", server)

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			fmt.Println("read error:", err)
			continue
		}
		var a models.Announcement
		if err := json.Unmarshal(buf[:n], &a); err != nil {
			fmt.Println(string(buf[:n]))
			continue
		}
		fmt.Printf("[%s] %s\n", a.Type, a.Message)
	}
}
