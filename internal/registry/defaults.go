package registry

// Defaults returns the study's source-dataset configuration: the HIFLD
// prison boundaries as the target, and the PFAS-associated point-source
// categories (airports certified for AFFF firefighting foam, wastewater
// treatment plants, industrial dischargers by NAICS code, landfills, and
// the three military footprints).
func Defaults() []Source {
	return []Source{
		{
			Key:             "prisons",
			Label:           "Carceral Facilities",
			Format:          FormatShapefile,
			Path:            "prisons/Prison_Boundaries.shp",
			Target:          true,
			JoinKey:         "FACILITYID",
			NameField:       "NAME",
			StatusField:     "STATUS",
			TypeField:       "TYPE",
			PopulationField: "POPULATION",
			AccuracyField:   "SHAPE_Leng",
			HUC8Field:       "HUC8",
		},
		{
			Key:     "airports",
			Label:   "Part 139 Airports",
			Format:  FormatShapefile,
			Path:    "airports/Part139_Airports.shp",
			JoinKey: "objectid",
		},
		{
			Key:      "wwtp",
			Label:    "Wastewater Treatment Plants",
			Format:   FormatCSV,
			Path:     "wwtp/cwns_facilities.csv",
			JoinKey:  "CWNS_NUMBER",
			LatField: "LATITUDE",
			LonField: "LONGITUDE",
		},
		{
			Key:             "naics_313",
			Label:           "Textile Mills",
			Format:          FormatCSV,
			Path:            "frs/naics_313.csv",
			JoinKey:         "REGISTRY_ID",
			NameField:       "PRIMARY_NAME",
			LatField:        "LATITUDE83",
			LonField:        "LONGITUDE83",
			DatumField:      "HDATUM_DESC",
			AccuracyField:   "ACCURACY_VALUE",
			RequireAccuracy: true,
		},
		{
			Key:             "naics_3222",
			Label:           "Converted Paper Product Manufacturing",
			Format:          FormatCSV,
			Path:            "frs/naics_3222.csv",
			JoinKey:         "REGISTRY_ID",
			NameField:       "PRIMARY_NAME",
			LatField:        "LATITUDE83",
			LonField:        "LONGITUDE83",
			DatumField:      "HDATUM_DESC",
			AccuracyField:   "ACCURACY_VALUE",
			RequireAccuracy: true,
		},
		{
			Key:             "naics_3328",
			Label:           "Metal Coating and Electroplating",
			Format:          FormatCSV,
			Path:            "frs/naics_3328.csv",
			JoinKey:         "REGISTRY_ID",
			NameField:       "PRIMARY_NAME",
			LatField:        "LATITUDE83",
			LonField:        "LONGITUDE83",
			DatumField:      "HDATUM_DESC",
			AccuracyField:   "ACCURACY_VALUE",
			RequireAccuracy: true,
		},
		{
			Key:             "naics_3344",
			Label:           "Semiconductor Manufacturing",
			Format:          FormatCSV,
			Path:            "frs/naics_3344.csv",
			JoinKey:         "REGISTRY_ID",
			NameField:       "PRIMARY_NAME",
			LatField:        "LATITUDE83",
			LonField:        "LONGITUDE83",
			DatumField:      "HDATUM_DESC",
			AccuracyField:   "ACCURACY_VALUE",
			RequireAccuracy: true,
		},
		{
			Key:             "landfills",
			Label:           "Landfills",
			Format:          FormatCSV,
			Path:            "frs/naics_562212.csv",
			JoinKey:         "REGISTRY_ID",
			NameField:       "PRIMARY_NAME",
			LatField:        "LATITUDE83",
			LonField:        "LONGITUDE83",
			DatumField:      "HDATUM_DESC",
			AccuracyField:   "ACCURACY_VALUE",
			RequireAccuracy: true,
		},
		{
			Key:     "military",
			Label:   "Military Bases",
			Format:  FormatShapefile,
			Path:    "military/FY19_MIRTA_Boundaries.shp",
			JoinKey: "OBJECTID",
		},
		{
			Key:      "brac",
			Label:    "BRAC",
			Format:   FormatXLSX,
			Path:     "brac/brac_sites.xlsx",
			JoinKey:  "ID",
			LatField: "LATITUDE",
			LonField: "LONGITUDE",
			SkipRows: 1,
		},
		{
			Key:     "fuds",
			Label:   "FUDS",
			Format:  FormatShapefile,
			Path:    "fuds/FUDS_Property_Boundaries.shp",
			JoinKey: "OBJECTID",
		},
	}
}
