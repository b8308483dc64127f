package shared

// SelfHealLockKey is the redis key serialising location repair sweeps across workers.
func SelfHealLockKey() string {
	return "linen:masters:self_heal:lock"
}
