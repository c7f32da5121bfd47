// ABOUTME: mDNS service discovery for the tonestream control endpoint
// ABOUTME: Advertises a running engine and browses for engines on the network
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/Resonate-Protocol/tonestream/internal/version"
)

// ServiceType is the DNS-SD service advertised by tonestream
const ServiceType = "_tonestream._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // control endpoint path, published in TXT
}

// Manager handles mDNS advertisement
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// ServiceInfo describes a discovered engine
type ServiceInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Version string
}

// Addr returns host:port
func (s ServiceInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Advertise publishes the control endpoint until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config.Path),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

// Discover browses for engines for the given duration
func Discover(timeout time.Duration) ([]ServiceInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []ServiceInfo, 1)

	go func() {
		var services []ServiceInfo
		seen := make(map[string]bool)
		for entry := range entries {
			svc, ok := toServiceInfo(entry)
			if !ok || seen[svc.Addr()] {
				continue
			}
			seen[svc.Addr()] = true
			log.Printf("Discovered engine: %s at %s", svc.Name, svc.Addr())
			services = append(services, svc)
		}
		found <- services
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout

	err := mdns.Query(params)
	close(entries)
	services := <-found

	if err != nil {
		return services, fmt.Errorf("mdns query failed: %w", err)
	}
	return services, nil
}

func toServiceInfo(entry *mdns.ServiceEntry) (ServiceInfo, bool) {
	if !strings.Contains(entry.Name, ServiceType) {
		return ServiceInfo{}, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return ServiceInfo{}, false
	}

	svc := ServiceInfo{
		Name: instanceName(entry.Name),
		Host: host,
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			svc.Path = value
		case "version":
			svc.Version = value
		}
	}
	return svc, true
}

func txtRecords(path string) []string {
	txt := []string{"version=" + version.Version}
	if path != "" {
		txt = append(txt, "path="+path)
	}
	return txt
}

// instanceName strips the service type and domain from a full DNS-SD name
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i > 0 {
		return strings.ReplaceAll(full[:i], `\ `, " ")
	}
	return full
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
