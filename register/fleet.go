/*
fleet.go - Barrel registration into the fleet

Registration stamps the human-readable BRL-<year>-<seq> identifier inside
the same transaction as the insert, so two concurrent registrations can
never commit the same id.
*/
package register

import "context"

// FleetService registers barrels into central inventory. Assets are never
// deleted; a damaged barrel is parked in maintenance instead.
type FleetService struct {
	Store TxStore
	Clock Clock
}

func NewFleetService(store TxStore) *FleetService {
	return &FleetService{Store: store, Clock: SystemClock}
}

// Register adds a new barrel to the fleet and returns it with its stamped
// identifier.
func (fs *FleetService) Register(ctx context.Context, barrelType string, capacityLiters int, material string) (*Asset, error) {
	if capacityLiters <= 0 {
		return nil, &ValidationError{Field: "capacity_liters", Message: "must be positive"}
	}
	if barrelType == "" {
		return nil, &ValidationError{Field: "barrel_type", Message: "required"}
	}

	var asset *Asset
	err := fs.Store.WithTx(ctx, func(s Stores) error {
		now := fs.Clock()
		id, err := NextAssetID(ctx, s, now.Year())
		if err != nil {
			return err
		}
		asset = &Asset{
			ID:             id,
			Status:         AssetAvailable,
			BarrelType:     barrelType,
			CapacityLiters: capacityLiters,
			Material:       material,
			CreatedAt:      now,
		}
		return s.Assets().SaveAsset(ctx, asset)
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// SetMaintenance parks an available barrel in maintenance, or releases it
// back. Barrels in custody cannot be parked.
func (fs *FleetService) SetMaintenance(ctx context.Context, assetID string, parked bool) (*Asset, error) {
	var asset *Asset
	err := fs.Store.WithTx(ctx, func(s Stores) error {
		a, err := s.Assets().GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAssetNotFound
		}
		if a.Status == AssetInUse {
			return &UnavailableAssetsError{AssetIDs: []string{assetID}}
		}
		status := AssetAvailable
		if parked {
			status = AssetMaintenance
		}
		if err := s.Assets().SetAssetCustody(ctx, assetID, status, "", nil); err != nil {
			return err
		}
		a.Status = status
		asset = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}
