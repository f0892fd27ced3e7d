package config

// Get the default resolver pools
func getDefaultPools() []PoolConfig {
	// Domestic resolvers answer reliably for mainland domains
	// that overseas resolvers may not see
	domestic := PoolConfig{
		Name:     "domestic",
		Suffixes: []string{".cn", ".中国", ".公司", ".网络"},
		Servers: []ServerConfig{
			{Address: "223.5.5.5", Weight: 2},                 // AliDNS
			{Address: "119.29.29.29", Weight: 2},              // DNSPod
			{Address: "114.114.114.114", Weight: 1},           // 114DNS
			{Address: "https://doh.pub/dns-query", Weight: 1}, // DNSPod DoH
			{Address: "tls://dns.alidns.com", Weight: 1},      // AliDNS DoT
		},
	}

	international := PoolConfig{
		Name: "international",
		Servers: []ServerConfig{
			{Address: "1.1.1.1", Weight: 2},                              // Cloudflare
			{Address: "8.8.8.8", Weight: 2},                              // Google
			{Address: "9.9.9.9", Weight: 1},                              // Quad9
			{Address: "https://cloudflare-dns.com/dns-query", Weight: 1}, // Cloudflare DoH
			{Address: "tls://dns.google", Weight: 1},                     // Google DoT
		},
	}

	return []PoolConfig{domestic, international}
}
