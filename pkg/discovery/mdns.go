package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// registration is a live mDNS registration. *zeroconf.Server satisfies it.
type registration interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string,
	ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string,
	ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser publishes one relay listener over mDNS.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu     sync.Mutex
	server registration
	info   RelayInfo
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	return &Advertiser{config: config, register: zeroconfRegister}
}

// selectInterface resolves a configured interface name; "" means all.
func selectInterface(name string) ([]net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownInterface, name, err)
	}
	return []net.Interface{*iface}, nil
}

// Advertise registers the relay, replacing any previous registration.
func (a *Advertiser) Advertise(info RelayInfo) error {
	if info.Instance == "" {
		info.Instance = DefaultInstance
	}
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}
	ifaces, err := selectInterface(a.config.Interface)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := TXTRecordsToStrings(EncodeRelayTXT(&info))
	server, err := a.register(info.Instance, ServiceType, Domain, info.Port, txt,
		ifaces, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	if err != nil {
		return fmt.Errorf("failed to register relay service: %w", err)
	}
	a.server = server
	a.info = info
	return nil
}

// UpdateFormat changes the advertised format in place.
func (a *Advertiser) UpdateFormat(format string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.info.Format = format
	a.server.SetText(TXTRecordsToStrings(EncodeRelayTXT(&a.info)))
	return nil
}

// Advertising reports whether a registration is live.
func (a *Advertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the registration. Stop without Advertise is a no-op.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

type browseFunc func(ctx context.Context, service, domain string,
	entries, removed chan<- *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// Browser finds relays on the local network.
type Browser struct {
	config BrowserConfig
	browse browseFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config, browse: zeroconf.Browse}
}

func (b *Browser) options() ([]zeroconf.ClientOption, error) {
	ifaces, err := selectInterface(b.config.Interface)
	if err != nil || ifaces == nil {
		return nil, err
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces(ifaces)}, nil
}

// Browse streams relays until ctx is done. Entries for the same instance
// seen on several interfaces are merged; only the first sighting is sent.
func (b *Browser) Browse(ctx context.Context) (<-chan *RelayService, error) {
	opts, err := b.options()
	if err != nil {
		return nil, err
	}

	out := make(chan *RelayService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*RelayService)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToRelay(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[svc.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Instance] = svc
				sent := *svc
				sent.Addresses = append([]string(nil), svc.Addresses...)
				select {
				case out <- &sent:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = b.browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// entryToRelay converts a zeroconf entry, or returns nil when its TXT
// records are not a relay's.
func entryToRelay(entry *zeroconf.ServiceEntry) *RelayService {
	info, err := DecodeRelayTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &RelayService{
		Instance:      entry.Instance,
		Host:          entry.HostName,
		Port:          entry.Port,
		Addresses:     addrs,
		Format:        info.Format,
		Version:       info.Version,
		WebSocketPath: info.WebSocketPath,
	}
}

// Dial returns a "host:port" for the service, preferring IPv4.
func (s *RelayService) Dial() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, fmt.Sprint(s.Port))
}

func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
