package domain

import (
	"fmt"
	"sort"
	"time"
)

// Classify partitions the fetched transaction list into fuel records
// (tank id 1) and electric charges (tank id 2), both sorted by date
// descending. For a pure-electric vehicle the tag filter is bypassed and
// every record is treated as an electric charge, because the vendor omits
// the tag on some pure-EV accounts.
//
// Ordering establishes "most recent" for every downstream derived metric, so
// a record with an unparseable date fails the whole call rather than being
// skipped. Records carrying neither tag (nor both semantics the vendor
// defines) are excluded from both sub-lists.
func Classify(records []TransactionRecord, vtype VehicleType) (gas, electric []TransactionRecord, err error) {
	type dated struct {
		rec  TransactionRecord
		when time.Time
	}

	var gasD, elecD []dated
	for i := range records {
		when, err := records[i].Time()
		if err != nil {
			return nil, nil, fmt.Errorf("record %d has unparseable date %q: %w", records[i].ID, records[i].Date, err)
		}
		d := dated{rec: records[i], when: when}

		if vtype == VehicleElectric {
			elecD = append(elecD, d)
			continue
		}
		switch records[i].TankID {
		case TankFuel:
			gasD = append(gasD, d)
		case TankElectric:
			elecD = append(elecD, d)
		}
	}

	byDateDesc := func(list []dated) []TransactionRecord {
		sort.SliceStable(list, func(i, j int) bool { return list[i].when.After(list[j].when) })
		out := make([]TransactionRecord, len(list))
		for i := range list {
			out[i] = list[i].rec
		}
		return out
	}

	return byDateDesc(gasD), byDateDesc(elecD), nil
}

// PrimaryList selects the list the shared derived metrics operate on:
// electric charges for a pure-electric vehicle, fuel records otherwise.
func PrimaryList(gas, electric []TransactionRecord, vtype VehicleType) []TransactionRecord {
	if vtype == VehicleElectric {
		return electric
	}
	return gas
}
