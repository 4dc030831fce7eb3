package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var ipServices = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
	"https://ipinfo.io/ip",
}

// fetchIP queries a single IP echo service with a short timeout.
func fetchIP(service string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Warnf("failed to close response body from %s: %v", service, errClose)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code from %s: %d", service, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// getPublicIP attempts to retrieve the public IP address from a list of
// external services, returning the first successful response.
func getPublicIP() (string, error) {
	for _, service := range ipServices {
		ip, err := fetchIP(service)
		if err != nil {
			log.Debugf("failed to get public IP from %s: %v", service, err)
			continue
		}
		return ip, nil
	}
	return "", fmt.Errorf("all IP services failed")
}

// getOutboundIP retrieves the preferred outbound IP address of this machine
// using a UDP connection to a public DNS server.
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warnf("failed to close UDP connection: %v", errClose)
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not assert UDP address type")
	}

	return localAddr.IP.String(), nil
}

// GetIPAddress attempts to find the best-available IP address, preferring the
// public IP and falling back to the local outbound address.
func GetIPAddress() string {
	publicIP, err := getPublicIP()
	if err == nil {
		log.Debugf("public IP detected: %s", publicIP)
		return publicIP
	}
	log.Warnf("failed to get public IP, falling back to outbound IP: %v", err)
	outboundIP, err := getOutboundIP()
	if err == nil {
		log.Debugf("outbound IP detected: %s", outboundIP)
		return outboundIP
	}
	log.Errorf("failed to get any IP address: %v", err)
	return "127.0.0.1"
}

// insideSSHSession reports whether the process runs under an SSH session.
func insideSSHSession() bool {
	return os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != ""
}

// PrintSSHTunnelInstructions detects the IP address and prints SSH tunnel
// instructions so a user can complete the browser sign-in on their local
// machine while the callback server runs on a remote host. Nothing is
// printed outside an SSH session, where the callback port is reachable
// directly.
//
// Parameters:
//   - port: The local port number for the SSH tunnel
func PrintSSHTunnelInstructions(port int) {
	if !insideSSHSession() {
		return
	}
	ipAddress := GetIPAddress()
	border := "================================================================================"
	fmt.Println("To sign in from a remote machine, an SSH tunnel may be required.")
	fmt.Println(border)
	fmt.Println("  Run one of the following commands on your local machine (NOT the server):")
	fmt.Println()
	fmt.Printf("  # Standard SSH command (assumes SSH port 22):\n")
	fmt.Printf("  ssh -L %d:127.0.0.1:%d root@%s -p 22\n", port, port, ipAddress)
	fmt.Println()
	fmt.Printf("  # If using an SSH key (assumes SSH port 22):\n")
	fmt.Printf("  ssh -i <path_to_your_key> -L %d:127.0.0.1:%d root@%s -p 22\n", port, port, ipAddress)
	fmt.Println()
	fmt.Println("  NOTE: If your server's SSH port is not 22, please modify the '-p 22' part accordingly.")
	fmt.Println(border)
}
