package realtime

import "testing"

func TestIntentRedeclareReplaces(t *testing.T) {
	set := newIntentSet()

	owner := set.declare(TopicSensorData, Filter{FarmID: "f1"})
	set.redeclare(TopicSensorData, owner, Filter{FarmID: "f2"})

	if set.count() != 1 {
		t.Fatalf("intent count = %d, want 1", set.count())
	}
	if set.wants("f1") {
		t.Fatal("replaced intent must release f1")
	}
	if !set.wants("f2") {
		t.Fatal("replacing intent must hold f2")
	}
}

func TestIntentFarmsDeduplicates(t *testing.T) {
	set := newIntentSet()
	set.declare(TopicSensorData, Filter{FarmID: "f1"})
	set.declare(TopicFarmAlert, Filter{FarmID: "f1"})
	set.declare(TopicFarmAlert, Filter{FarmID: "f2"})
	set.declare(TopicNotification, Filter{})

	farms := set.farms()
	if len(farms) != 2 {
		t.Fatalf("distinct farms = %d, want 2", len(farms))
	}
}

func TestIntentRevokeReportsLastInterest(t *testing.T) {
	set := newIntentSet()
	a := set.declare(TopicSensorData, Filter{FarmID: "f1"})
	b := set.declare(TopicFarmAlert, Filter{FarmID: "f1"})

	if _, wanted := set.revoke(TopicSensorData, a); !wanted {
		t.Fatal("farm still wanted by the remaining intent")
	}
	farm, wanted := set.revoke(TopicFarmAlert, b)
	if wanted {
		t.Fatal("no intent left; farm should not be wanted")
	}
	if farm != "f1" {
		t.Fatalf("revoked farm = %s, want f1", farm)
	}
}
