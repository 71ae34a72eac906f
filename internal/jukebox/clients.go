package jukebox

import "time"

// TouchClient records activity for a client, keeping it in the active set
// used for the skip threshold. Stale clients are pruned lazily, at most once
// per timeout window.
func (j *Jukebox) TouchClient(client string) {
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.clients[client] = now
	j.pruneClientsLocked(now)
}

// NumActiveClients returns the number of clients seen within the timeout.
func (j *Jukebox) NumActiveClients() int {
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.pruneClientsLocked(now)

	// The map may still hold entries from before the last prune.
	active := 0
	cutoff := now.Add(-j.clientTimeout)
	for _, seen := range j.clients {
		if !seen.Before(cutoff) {
			active++
		}
	}
	return active
}

func (j *Jukebox) pruneClientsLocked(now time.Time) {
	if now.Before(j.nextClientPrune) {
		return
	}
	j.nextClientPrune = now.Add(j.clientTimeout)

	cutoff := now.Add(-j.clientTimeout)
	for client, seen := range j.clients {
		if seen.Before(cutoff) {
			j.log.Debug("Pruning inactive client", "client", client)
			delete(j.clients, client)
		}
	}
}

// NeededSkips is the strict majority of the active audience. The audience
// always includes the playing device itself, so one lone viewer needs one
// vote and n viewers need more than half.
func (j *Jukebox) NeededSkips() int {
	return neededSkips(j.NumActiveClients())
}

func neededSkips(activeClients int) int {
	needed := (activeClients + 1) / 2
	if needed < 1 {
		return 1
	}
	return needed
}
