// Package demo generates the synthetic traffic shown in demo mode.
//
// Every draw goes through the injected ports.Random, so a seeded or scripted
// source makes the output reproducible.
package demo

import (
	"time"

	"github.com/rdmonitor/rdmon/domain/account"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
)

// Days is the number of daily records produced by Generate.
const Days = 30

// QuotaBytes is the account-wide allowance reported in demo mode (1000 GiB).
const QuotaBytes int64 = 1000 * 1024 * 1024 * 1024

const (
	spikeChance       = 0.15
	todayFloorGB      = 2.0
	secondHostChance  = 0.3
	hostLimitMinGB    = 150.0
	hostLimitMaxGB    = 1000.0
	secondHostMinFrac = 0.1
	secondHostMaxFrac = 0.8
)

// Hosts is the hoster catalogue, most popular first.
var Hosts = []string{
	"mega.nz",
	"1fichier.com",
	"rapidgator.net",
	"turbobit.net",
	"nitroflare.com",
	"uploaded.net",
	"katfile.com",
}

// hostWeights are the draw probabilities of Hosts, index-aligned.
var hostWeights = []float64{0.30, 0.25, 0.20, 0.15, 0.05, 0.03, 0.02}

// hostUsageRanges bound the synthetic cumulative usage of Hosts, in GB.
var hostUsageRanges = [][2]float64{
	{45, 85},
	{25, 65},
	{15, 45},
	{10, 35},
	{5, 25},
	{2, 15},
	{1, 8},
}

// secondHosts may be added to a day in the details breakdown.
var secondHosts = []string{"mega.nz", "1fichier.com", "rapidgator.net", "turbobit.net"}

// Generator produces synthetic traffic.
type Generator struct {
	rand ports.Random
}

// NewGenerator creates a generator drawing from r.
func NewGenerator(r ports.Random) *Generator {
	return &Generator{rand: r}
}

// uniform returns a value in [lo, hi).
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rand.Float64()
}

// Generate returns exactly Days records from now back to now-29d, newest
// first. Weekends draw more traffic, 15% of days spike, and today is floored
// at 2 GB so the dashboard never opens on an empty day.
func (g *Generator) Generate(now time.Time) []traffic.DailyRecord {
	records := make([]traffic.DailyRecord, 0, Days)

	for i := 0; i < Days; i++ {
		day := now.AddDate(0, 0, -i)

		var gb float64
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			gb = g.uniform(8, 25)
		} else {
			gb = g.uniform(2, 18)
		}
		if g.rand.Float64() < spikeChance {
			gb *= g.uniform(1.5, 3.0)
		}
		host := g.pickHost()

		if i == 0 && gb < todayFloorGB {
			gb = todayFloorGB
		}

		records = append(records, traffic.DailyRecord{
			Date:  day.Format(traffic.DateLayout),
			Bytes: int64(gb * traffic.BytesPerGB),
			Host:  host,
			Type:  traffic.RecordTypeDownload,
		})
	}
	return records
}

// pickHost draws a host by weight. The first host whose cumulative weight
// reaches the draw wins; rounding that leaves the draw uncovered falls back
// to the first host.
func (g *Generator) pickHost() string {
	v := g.rand.Float64()
	var cumulative float64
	for i, w := range hostWeights {
		cumulative += w
		if v <= cumulative {
			return Hosts[i]
		}
	}
	return Hosts[0]
}

// HostUsage draws a per-host usage list, sorted by usage descending.
// It is independent of any generated records.
func (g *Generator) HostUsage() []traffic.HostTraffic {
	hosts := make([]traffic.HostTraffic, 0, len(Hosts))
	for i, name := range Hosts {
		r := hostUsageRanges[i]
		used := g.uniform(r[0], r[1])
		limit := g.uniform(hostLimitMinGB, hostLimitMaxGB)
		hosts = append(hosts, traffic.HostTraffic{Host: name, UsedGB: used, LimitGB: limit})
	}
	traffic.SortHosts(hosts)
	return hosts
}

// Account returns the demo account quota consumed by records.
// This is a PURE function.
func Account(records []traffic.DailyRecord) account.Quota {
	var used int64
	for _, r := range records {
		used += r.Bytes
	}
	return account.NewQuota(used, QuotaBytes)
}

// Details groups records into per-day breakdowns. The first record of each
// date has a 30% chance of gaining a second host carrying 10-80% of its
// bytes, unless the drawn host is the record's own.
func (g *Generator) Details(records []traffic.DailyRecord) []traffic.Day {
	index := make(map[string]int)
	var days []traffic.Day

	for _, r := range records {
		if i, ok := index[r.Date]; ok {
			days[i].Hosts = append(days[i].Hosts, traffic.DayHost{Name: r.Host, Bytes: r.Bytes})
			continue
		}

		day := traffic.Day{Date: r.Date, Hosts: []traffic.DayHost{{Name: r.Host, Bytes: r.Bytes}}}
		if g.rand.Float64() < secondHostChance {
			extra := secondHosts[g.pickIndex(len(secondHosts))]
			if extra != r.Host {
				bytes := int64(g.uniform(secondHostMinFrac, secondHostMaxFrac) * float64(r.Bytes))
				day.Hosts = append(day.Hosts, traffic.DayHost{Name: extra, Bytes: bytes})
			}
		}
		index[r.Date] = len(days)
		days = append(days, day)
	}

	for i := range days {
		var total int64
		for _, h := range days[i].Hosts {
			total += h.Bytes
		}
		days[i].TotalBytes = total
	}
	traffic.SortDays(days)
	return days
}

func (g *Generator) pickIndex(n int) int {
	i := int(g.rand.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Latency draws a simulated network delay in [lo, hi].
func (g *Generator) Latency(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rand.Float64()*float64(hi-lo))
}

// Profile returns the sample account shown in demo mode.
func Profile(now time.Time) account.Profile {
	return account.Profile{
		Username:   "demo_user",
		Email:      "demo@example.com",
		Points:     1250,
		Type:       "premium",
		Expiration: now.AddDate(0, 6, 0).UTC().Format(time.RFC3339),
	}
}
