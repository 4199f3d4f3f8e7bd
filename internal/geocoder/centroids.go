package geocoder

import (
	"strings"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// cityCentroids holds approximate centroids for cities that show up
// repeatedly in listings. The backfill pass falls back to these after exact
// addresses keep failing; a centroid is deliberately coarse and only ever
// used where null coordinates would otherwise persist.
var cityCentroids = map[string]pipeline.Coordinates{
	"atlanta|GA":       {Latitude: 33.7490, Longitude: -84.3880},
	"boston|MA":        {Latitude: 42.3601, Longitude: -71.0589},
	"charlotte|NC":     {Latitude: 35.2271, Longitude: -80.8431},
	"chicago|IL":       {Latitude: 41.8781, Longitude: -87.6298},
	"cleveland|OH":     {Latitude: 41.4993, Longitude: -81.6944},
	"columbus|OH":      {Latitude: 39.9612, Longitude: -82.9988},
	"dallas|TX":        {Latitude: 32.7767, Longitude: -96.7970},
	"denver|CO":        {Latitude: 39.7392, Longitude: -104.9903},
	"detroit|MI":       {Latitude: 42.3314, Longitude: -83.0458},
	"houston|TX":       {Latitude: 29.7604, Longitude: -95.3698},
	"indianapolis|IN":  {Latitude: 39.7684, Longitude: -86.1581},
	"kansas city|MO":   {Latitude: 39.0997, Longitude: -94.5786},
	"las vegas|NV":     {Latitude: 36.1699, Longitude: -115.1398},
	"los angeles|CA":   {Latitude: 34.0522, Longitude: -118.2437},
	"miami|FL":         {Latitude: 25.7617, Longitude: -80.1918},
	"minneapolis|MN":   {Latitude: 44.9778, Longitude: -93.2650},
	"nashville|TN":     {Latitude: 36.1627, Longitude: -86.7816},
	"new york|NY":      {Latitude: 40.7128, Longitude: -74.0060},
	"philadelphia|PA":  {Latitude: 39.9526, Longitude: -75.1652},
	"phoenix|AZ":       {Latitude: 33.4484, Longitude: -112.0740},
	"pittsburgh|PA":    {Latitude: 40.4406, Longitude: -79.9959},
	"portland|OR":      {Latitude: 45.5152, Longitude: -122.6784},
	"san antonio|TX":   {Latitude: 29.4241, Longitude: -98.4936},
	"san diego|CA":     {Latitude: 32.7157, Longitude: -117.1611},
	"san francisco|CA": {Latitude: 37.7749, Longitude: -122.4194},
	"seattle|WA":       {Latitude: 47.6062, Longitude: -122.3321},
	"springfield|IL":   {Latitude: 39.7817, Longitude: -89.6501},
	"st. louis|MO":     {Latitude: 38.6270, Longitude: -90.1994},
	"tampa|FL":         {Latitude: 27.9506, Longitude: -82.4572},
}

// CityCentroid returns the fallback centroid for a city/state pair, or nil
// when the table has no entry.
func CityCentroid(city, state string) *pipeline.Coordinates {
	if city == "" || state == "" {
		return nil
	}
	key := strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToUpper(strings.TrimSpace(state))
	if c, ok := cityCentroids[key]; ok {
		return &c
	}
	return nil
}
